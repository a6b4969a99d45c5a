package vpc

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// SetupPublicIPs allocates one public address per eligible instance, the NAT
// instance when present and then the bouncer, and associates it. Each
// instance is tagged with its address.
func (b *Builder) SetupPublicIPs(ctx context.Context, nat, bouncer *Instance) ([]Address, error) {
	opCtx := b.operation("setup-public-ips")
	b.logger.LogOperationStart(ctx, opCtx, "Setting up public IPs")

	var addresses []Address
	for _, inst := range []*Instance{nat, bouncer} {
		if inst == nil {
			continue
		}
		addr, err := b.attachPublicIP(ctx, inst)
		if err != nil {
			// addr is set when the allocation still exists and teardown must know about it
			if addr != nil {
				addresses = append(addresses, *addr)
			}
			return addresses, b.finish(ctx, opCtx, err, "Set up public IP")
		}
		addresses = append(addresses, *addr)
		b.log.Info("Instance has got public IP", "instanceID", inst.ID(), "role", inst.Role, "publicIP", addr.PublicIP)
	}

	return addresses, b.finish(ctx, opCtx, nil, "Public IPs set up")
}

func (b *Builder) attachPublicIP(ctx context.Context, inst *Instance) (*Address, error) {
	var allocated *ec2.AllocateAddressOutput
	err := b.call(ctx, "AllocateAddress", func(ctx context.Context) error {
		var err error
		allocated, err = b.ec2.AllocateAddress(ctx, &ec2.AllocateAddressInput{Domain: types.DomainTypeVpc})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: allocate for %s: %w", ErrAddress, inst.ID(), err)
	}
	addr := &Address{
		AllocationID: awssdk.ToString(allocated.AllocationId),
		PublicIP:     awssdk.ToString(allocated.PublicIp),
	}

	var associated *ec2.AssociateAddressOutput
	err = b.call(ctx, "AssociateAddress", func(ctx context.Context) error {
		var err error
		associated, err = b.ec2.AssociateAddress(ctx, &ec2.AssociateAddressInput{
			AllocationId: awssdk.String(addr.AllocationID),
			InstanceId:   awssdk.String(inst.ID()),
		})
		return err
	})
	if err != nil {
		err = fmt.Errorf("%w: associate %s with %s: %w", ErrAddress, addr.AllocationID, inst.ID(), err)
		if relErr := b.releaseAddress(ctx, addr.AllocationID); relErr != nil {
			b.log.Info("Could not release unassociated address", "allocationID", addr.AllocationID, "error", relErr.Error())
			return addr, err
		}
		return nil, err
	}
	addr.AssociationID = awssdk.ToString(associated.AssociationId)
	addr.InstanceID = inst.ID()
	inst.PublicIP = addr.PublicIP

	if inst.Role == RoleNAT {
		if err := b.setSourceDestCheck(ctx, inst, false); err != nil {
			return addr, err
		}
	}

	if err := b.tag(ctx, inst.ID(), TagEIPAutoAttach, addr.PublicIP); err != nil {
		return addr, err
	}
	return addr, nil
}

// releaseAddress gives back an allocation that never got associated.
// Teardown only finds addresses through their instance.
func (b *Builder) releaseAddress(ctx context.Context, allocationID string) error {
	return b.call(ctx, "ReleaseAddress", func(ctx context.Context) error {
		_, err := b.ec2.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{AllocationId: awssdk.String(allocationID)})
		return err
	})
}
