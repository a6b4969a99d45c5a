package vpc

import "errors"

// Provisioning failures. Each is wrapped around the provider error.
var (
	ErrInvalidOptions         = errors.New("invalid setup options")
	ErrVPCCreate              = errors.New("failed to create VPC")
	ErrSubnetCreate           = errors.New("failed to create subnet")
	ErrGatewayCreate          = errors.New("failed to create internet gateway")
	ErrGatewayAttach          = errors.New("failed to attach internet gateway")
	ErrSecurityGroupCreate    = errors.New("failed to create security group")
	ErrSecurityGroupAuthorize = errors.New("failed to authorize security group ingress")
	ErrInstanceRun            = errors.New("failed to run instance")
	ErrRouteTable             = errors.New("failed to configure route table")
	ErrRoute                  = errors.New("failed to create route")
	ErrAddress                = errors.New("failed to set up public address")
	ErrInstanceAttribute      = errors.New("failed to modify instance attribute")
	ErrTag                    = errors.New("failed to tag resource")
)
