package teardown

import "errors"

// ErrLiveInstances is returned by the guard when the VPC still holds running
// or stopped instances and termination was not requested
var ErrLiveInstances = errors.New("instances still exist in the VPC")

// ErrNoComputeClient is returned by NewRunner without a compute client
var ErrNoComputeClient = errors.New("no compute client configured")
