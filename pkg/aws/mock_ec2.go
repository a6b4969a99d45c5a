package aws

import (
	"context"
	"fmt"
	"net/netip"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// MockEC2Client is an in-memory EC2API. It keeps SDK types in maps, so
// describe calls return the same shapes as the real service, and it enforces
// the dependency rules that make teardown order matter: a VPC cannot be
// deleted while subnets or gateways remain, a group cannot be deleted while
// another group's rules reference it, and so on.
//
// Instances advance one lifecycle step every time they are described
// (pending to running, stopping to stopped, shutting-down to terminated)
// unless their ID is listed in StuckInstances.
type MockEC2Client struct {
	Vpcs               map[string]*types.Vpc
	Subnets            map[string]*types.Subnet
	InternetGateways   map[string]*types.InternetGateway
	NatGateways        map[string]*types.NatGateway
	PeeringConnections map[string]*types.VpcPeeringConnection
	NetworkInterfaces  map[string]*types.NetworkInterface
	SecurityGroups     map[string]*types.SecurityGroup
	Instances          map[string]*types.Instance
	RouteTables        map[string]*types.RouteTable
	Addresses          map[string]*types.Address
	KeyPairs           map[string]string // key name -> private key material
	Images             map[string]*types.Image

	FailureScenarios map[string]bool // operation -> should fail
	StuckInstances   map[string]bool // instance ID -> never changes state

	calls  []string
	nextID int
	mutex  sync.Mutex
}

// NewMockEC2Client creates an empty in-memory EC2 API
func NewMockEC2Client() *MockEC2Client {
	return &MockEC2Client{
		Vpcs:               make(map[string]*types.Vpc),
		Subnets:            make(map[string]*types.Subnet),
		InternetGateways:   make(map[string]*types.InternetGateway),
		NatGateways:        make(map[string]*types.NatGateway),
		PeeringConnections: make(map[string]*types.VpcPeeringConnection),
		NetworkInterfaces:  make(map[string]*types.NetworkInterface),
		SecurityGroups:     make(map[string]*types.SecurityGroup),
		Instances:          make(map[string]*types.Instance),
		RouteTables:        make(map[string]*types.RouteTable),
		Addresses:          make(map[string]*types.Address),
		KeyPairs:           make(map[string]string),
		Images:             make(map[string]*types.Image),
		FailureScenarios:   make(map[string]bool),
		StuckInstances:     make(map[string]bool),
	}
}

var _ EC2API = (*MockEC2Client)(nil)

// SetFailureScenario sets whether a specific operation should fail
func (m *MockEC2Client) SetFailureScenario(operation string, shouldFail bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.FailureScenarios[operation] = shouldFail
}

// SetStuck pins an instance in its current state
func (m *MockEC2Client) SetStuck(instanceID string, stuck bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.StuckInstances[instanceID] = stuck
}

// Calls returns every operation invoked so far, in order
func (m *MockEC2Client) Calls() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]string(nil), m.calls...)
}

// MutatingCalls returns the invoked operations that change state
func (m *MockEC2Client) MutatingCalls() []string {
	var out []string
	for _, c := range m.Calls() {
		if !strings.HasPrefix(c, "Describe") {
			out = append(out, c)
		}
	}
	return out
}

// CallCount returns how many times operation was invoked
func (m *MockEC2Client) CallCount(operation string) int {
	n := 0
	for _, c := range m.Calls() {
		if c == operation {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log
func (m *MockEC2Client) ResetCalls() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls = nil
}

// AddNatGateway seeds a NAT gateway in state available
func (m *MockEC2Client) AddNatGateway(vpcID, subnetID string) string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	id := m.newID("nat")
	m.NatGateways[id] = &types.NatGateway{
		NatGatewayId: aws.String(id),
		VpcId:        aws.String(vpcID),
		SubnetId:     aws.String(subnetID),
		State:        types.NatGatewayStateAvailable,
	}
	return id
}

// AddPeeringConnection seeds an active peering connection requested by requesterVpcID
func (m *MockEC2Client) AddPeeringConnection(requesterVpcID, accepterVpcID string) string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	id := m.newID("pcx")
	m.PeeringConnections[id] = &types.VpcPeeringConnection{
		VpcPeeringConnectionId: aws.String(id),
		RequesterVpcInfo:       &types.VpcPeeringConnectionVpcInfo{VpcId: aws.String(requesterVpcID)},
		AccepterVpcInfo:        &types.VpcPeeringConnectionVpcInfo{VpcId: aws.String(accepterVpcID)},
		Status:                 &types.VpcPeeringConnectionStateReason{Code: types.VpcPeeringConnectionStateReasonCodeActive},
	}
	return id
}

// AddNetworkInterface seeds a detached network interface in a subnet
func (m *MockEC2Client) AddNetworkInterface(vpcID, subnetID string) string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	id := m.newID("eni")
	m.NetworkInterfaces[id] = &types.NetworkInterface{
		NetworkInterfaceId: aws.String(id),
		VpcId:              aws.String(vpcID),
		SubnetId:           aws.String(subnetID),
		Status:             types.NetworkInterfaceStatusAvailable,
	}
	return id
}

// AddImage seeds a machine image
func (m *MockEC2Client) AddImage(imageID, name, creationDate string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.Images[imageID] = &types.Image{
		ImageId:        aws.String(imageID),
		Name:           aws.String(name),
		Architecture:   types.ArchitectureValuesX8664,
		RootDeviceType: types.DeviceTypeEbs,
		State:          types.ImageStateAvailable,
		CreationDate:   aws.String(creationDate),
	}
}

// begin records the call and reports a simulated failure. Callers hold the mutex.
func (m *MockEC2Client) begin(operation string) error {
	m.calls = append(m.calls, operation)
	if m.FailureScenarios[operation] {
		return APIError("MockFailure", fmt.Sprintf("simulated %s failure", operation))
	}
	return nil
}

func (m *MockEC2Client) newID(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%08x", prefix, m.nextID)
}

// filterSet indexes describe filters by name
type filterSet map[string][]string

func newFilterSet(filters []types.Filter) filterSet {
	fs := filterSet{}
	for _, f := range filters {
		name := aws.ToString(f.Name)
		fs[name] = append(fs[name], f.Values...)
	}
	return fs
}

// check rejects filter names the mock does not understand
func (fs filterSet) check(supported ...string) error {
	for name := range fs {
		known := false
		for _, s := range supported {
			if name == s {
				known = true
				break
			}
		}
		if !known {
			return APIError("InvalidParameterValue", fmt.Sprintf("the filter '%s' is invalid", name))
		}
	}
	return nil
}

// match reports whether any of values satisfies the named filter. An absent
// filter matches everything. Filter values may use * wildcards.
func (fs filterSet) match(name string, values ...string) bool {
	wanted, ok := fs[name]
	if !ok {
		return true
	}
	for _, w := range wanted {
		for _, v := range values {
			if ok, _ := path.Match(w, v); ok {
				return true
			}
		}
	}
	return false
}

func tagsFromSpecs(specs []types.TagSpecification) []types.Tag {
	var tags []types.Tag
	for _, s := range specs {
		tags = append(tags, s.Tags...)
	}
	return tags
}

// mergeTags overwrites existing keys and appends new ones
func mergeTags(existing, tags []types.Tag) []types.Tag {
	out := append([]types.Tag(nil), existing...)
	for _, t := range tags {
		replaced := false
		for i := range out {
			if aws.ToString(out[i].Key) == aws.ToString(t.Key) {
				out[i].Value = t.Value
				replaced = true
			}
		}
		if !replaced {
			out = append(out, t)
		}
	}
	return out
}

func idSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// sortedKeys returns map keys in creation order, which the zero-padded
// counter in every ID preserves
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return idSuffix(keys[i]) < idSuffix(keys[j])
	})
	return keys
}

func idSuffix(id string) string {
	if i := strings.LastIndex(id, "-"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// CreateVpc creates a VPC with its main route table and default security group
func (m *MockEC2Client) CreateVpc(ctx context.Context, params *ec2.CreateVpcInput, optFns ...func(*ec2.Options)) (*ec2.CreateVpcOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("CreateVpc"); err != nil {
		return nil, err
	}
	if _, err := netip.ParsePrefix(aws.ToString(params.CidrBlock)); err != nil {
		return nil, APIError("InvalidVpc.Range", fmt.Sprintf("the CIDR '%s' is invalid", aws.ToString(params.CidrBlock)))
	}

	id := m.newID("vpc")
	vpc := &types.Vpc{
		VpcId:     aws.String(id),
		CidrBlock: params.CidrBlock,
		State:     types.VpcStateAvailable,
		IsDefault: aws.Bool(false),
		Tags:      tagsFromSpecs(params.TagSpecifications),
	}
	m.Vpcs[id] = vpc

	rtbID := m.newID("rtb")
	m.RouteTables[rtbID] = &types.RouteTable{
		RouteTableId: aws.String(rtbID),
		VpcId:        aws.String(id),
		Routes: []types.Route{{
			DestinationCidrBlock: params.CidrBlock,
			GatewayId:            aws.String("local"),
			State:                types.RouteStateActive,
			Origin:               types.RouteOriginCreateRouteTable,
		}},
		Associations: []types.RouteTableAssociation{{
			RouteTableAssociationId: aws.String(m.newID("rtbassoc")),
			RouteTableId:            aws.String(rtbID),
			Main:                    aws.Bool(true),
		}},
	}

	sgID := m.newID("sg")
	m.SecurityGroups[sgID] = &types.SecurityGroup{
		GroupId:             aws.String(sgID),
		GroupName:           aws.String("default"),
		Description:         aws.String("default VPC security group"),
		VpcId:               aws.String(id),
		IpPermissionsEgress: []types.IpPermission{allowAllEgress()},
	}

	out := *vpc
	return &ec2.CreateVpcOutput{Vpc: &out}, nil
}

// DescribeVpcs supports the vpc-id filter
func (m *MockEC2Client) DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("DescribeVpcs"); err != nil {
		return nil, err
	}
	fs := newFilterSet(params.Filters)
	if err := fs.check("vpc-id"); err != nil {
		return nil, err
	}
	for _, id := range params.VpcIds {
		if _, ok := m.Vpcs[id]; !ok {
			return nil, APIError("InvalidVpcID.NotFound", fmt.Sprintf("The vpc ID '%s' does not exist", id))
		}
	}

	ids := idSet(params.VpcIds)
	out := &ec2.DescribeVpcsOutput{}
	for _, key := range sortedKeys(m.Vpcs) {
		vpc := m.Vpcs[key]
		if ids != nil && !ids[key] {
			continue
		}
		if !fs.match("vpc-id", key) {
			continue
		}
		out.Vpcs = append(out.Vpcs, *vpc)
	}
	return out, nil
}

// DeleteVpc fails with DependencyViolation while subnets, gateways, extra
// route tables or non-default groups remain
func (m *MockEC2Client) DeleteVpc(ctx context.Context, params *ec2.DeleteVpcInput, optFns ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("DeleteVpc"); err != nil {
		return nil, err
	}
	id := aws.ToString(params.VpcId)
	if _, ok := m.Vpcs[id]; !ok {
		return nil, APIError("InvalidVpcID.NotFound", fmt.Sprintf("The vpc ID '%s' does not exist", id))
	}

	dependency := func(kind, depID string) error {
		return APIError("DependencyViolation", fmt.Sprintf("The vpc '%s' has dependencies and cannot be deleted (%s %s)", id, kind, depID))
	}
	for sid, s := range m.Subnets {
		if aws.ToString(s.VpcId) == id {
			return nil, dependency("subnet", sid)
		}
	}
	for gid, g := range m.InternetGateways {
		for _, a := range g.Attachments {
			if aws.ToString(a.VpcId) == id {
				return nil, dependency("internet gateway", gid)
			}
		}
	}
	for rid, rt := range m.RouteTables {
		if aws.ToString(rt.VpcId) == id && !isMainRouteTable(rt) {
			return nil, dependency("route table", rid)
		}
	}
	for gid, sg := range m.SecurityGroups {
		if aws.ToString(sg.VpcId) == id && aws.ToString(sg.GroupName) != "default" {
			return nil, dependency("security group", gid)
		}
	}
	for nid, n := range m.NetworkInterfaces {
		if aws.ToString(n.VpcId) == id {
			return nil, dependency("network interface", nid)
		}
	}

	for rid, rt := range m.RouteTables {
		if aws.ToString(rt.VpcId) == id {
			delete(m.RouteTables, rid)
		}
	}
	for gid, sg := range m.SecurityGroups {
		if aws.ToString(sg.VpcId) == id {
			delete(m.SecurityGroups, gid)
		}
	}
	delete(m.Vpcs, id)
	return &ec2.DeleteVpcOutput{}, nil
}

// CreateSubnet creates a subnet in an existing VPC
func (m *MockEC2Client) CreateSubnet(ctx context.Context, params *ec2.CreateSubnetInput, optFns ...func(*ec2.Options)) (*ec2.CreateSubnetOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("CreateSubnet"); err != nil {
		return nil, err
	}
	vpcID := aws.ToString(params.VpcId)
	vpc, ok := m.Vpcs[vpcID]
	if !ok {
		return nil, APIError("InvalidVpcID.NotFound", fmt.Sprintf("The vpc ID '%s' does not exist", vpcID))
	}
	subnetPrefix, err := netip.ParsePrefix(aws.ToString(params.CidrBlock))
	if err != nil {
		return nil, APIError("InvalidSubnet.Range", fmt.Sprintf("The CIDR '%s' is invalid", aws.ToString(params.CidrBlock)))
	}
	vpcPrefix, _ := netip.ParsePrefix(aws.ToString(vpc.CidrBlock))
	if !vpcPrefix.Contains(subnetPrefix.Addr()) || subnetPrefix.Bits() < vpcPrefix.Bits() {
		return nil, APIError("InvalidSubnet.Range", fmt.Sprintf("The CIDR '%s' is invalid for this VPC", subnetPrefix))
	}
	for _, s := range m.Subnets {
		if aws.ToString(s.VpcId) == vpcID && aws.ToString(s.CidrBlock) == subnetPrefix.String() {
			return nil, APIError("InvalidSubnet.Conflict", fmt.Sprintf("The CIDR '%s' conflicts with another subnet", subnetPrefix))
		}
	}

	id := m.newID("subnet")
	subnet := &types.Subnet{
		SubnetId:         aws.String(id),
		VpcId:            aws.String(vpcID),
		CidrBlock:        aws.String(subnetPrefix.String()),
		AvailabilityZone: params.AvailabilityZone,
		State:            types.SubnetStateAvailable,
		Tags:             tagsFromSpecs(params.TagSpecifications),
	}
	m.Subnets[id] = subnet
	out := *subnet
	return &ec2.CreateSubnetOutput{Subnet: &out}, nil
}

// DescribeSubnets supports the vpc-id and subnet-id filters
func (m *MockEC2Client) DescribeSubnets(ctx context.Context, params *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("DescribeSubnets"); err != nil {
		return nil, err
	}
	fs := newFilterSet(params.Filters)
	if err := fs.check("vpc-id", "subnet-id"); err != nil {
		return nil, err
	}
	for _, id := range params.SubnetIds {
		if _, ok := m.Subnets[id]; !ok {
			return nil, APIError("InvalidSubnetID.NotFound", fmt.Sprintf("The subnet ID '%s' does not exist", id))
		}
	}

	ids := idSet(params.SubnetIds)
	out := &ec2.DescribeSubnetsOutput{}
	for _, key := range sortedKeys(m.Subnets) {
		s := m.Subnets[key]
		if ids != nil && !ids[key] {
			continue
		}
		if !fs.match("vpc-id", aws.ToString(s.VpcId)) || !fs.match("subnet-id", key) {
			continue
		}
		out.Subnets = append(out.Subnets, *s)
	}
	return out, nil
}

// DeleteSubnet fails with DependencyViolation while instances or network
// interfaces live in the subnet
func (m *MockEC2Client) DeleteSubnet(ctx context.Context, params *ec2.DeleteSubnetInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("DeleteSubnet"); err != nil {
		return nil, err
	}
	id := aws.ToString(params.SubnetId)
	if _, ok := m.Subnets[id]; !ok {
		return nil, APIError("InvalidSubnetID.NotFound", fmt.Sprintf("The subnet ID '%s' does not exist", id))
	}
	for iid, inst := range m.Instances {
		if aws.ToString(inst.SubnetId) == id && inst.State.Name != types.InstanceStateNameTerminated {
			return nil, APIError("DependencyViolation", fmt.Sprintf("The subnet '%s' has dependencies and cannot be deleted (instance %s)", id, iid))
		}
	}
	for nid, n := range m.NetworkInterfaces {
		if aws.ToString(n.SubnetId) == id {
			return nil, APIError("DependencyViolation", fmt.Sprintf("The subnet '%s' has dependencies and cannot be deleted (network interface %s)", id, nid))
		}
	}

	for _, rt := range m.RouteTables {
		var kept []types.RouteTableAssociation
		for _, a := range rt.Associations {
			if aws.ToString(a.SubnetId) != id {
				kept = append(kept, a)
			}
		}
		rt.Associations = kept
	}
	delete(m.Subnets, id)
	return &ec2.DeleteSubnetOutput{}, nil
}

// CreateInternetGateway creates a detached internet gateway
func (m *MockEC2Client) CreateInternetGateway(ctx context.Context, params *ec2.CreateInternetGatewayInput, optFns ...func(*ec2.Options)) (*ec2.CreateInternetGatewayOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("CreateInternetGateway"); err != nil {
		return nil, err
	}
	id := m.newID("igw")
	igw := &types.InternetGateway{
		InternetGatewayId: aws.String(id),
		Tags:              tagsFromSpecs(params.TagSpecifications),
	}
	m.InternetGateways[id] = igw
	out := *igw
	return &ec2.CreateInternetGatewayOutput{InternetGateway: &out}, nil
}

// AttachInternetGateway attaches a gateway to a VPC
func (m *MockEC2Client) AttachInternetGateway(ctx context.Context, params *ec2.AttachInternetGatewayInput, optFns ...func(*ec2.Options)) (*ec2.AttachInternetGatewayOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("AttachInternetGateway"); err != nil {
		return nil, err
	}
	igwID, vpcID := aws.ToString(params.InternetGatewayId), aws.ToString(params.VpcId)
	igw, ok := m.InternetGateways[igwID]
	if !ok {
		return nil, APIError("InvalidInternetGatewayID.NotFound", fmt.Sprintf("The internetGateway ID '%s' does not exist", igwID))
	}
	if _, ok := m.Vpcs[vpcID]; !ok {
		return nil, APIError("InvalidVpcID.NotFound", fmt.Sprintf("The vpc ID '%s' does not exist", vpcID))
	}
	if len(igw.Attachments) > 0 {
		return nil, APIError("Resource.AlreadyAssociated", fmt.Sprintf("resource %s is already attached", igwID))
	}
	igw.Attachments = []types.InternetGatewayAttachment{{
		VpcId: aws.String(vpcID),
		State: types.AttachmentStatusAttached,
	}}
	return &ec2.AttachInternetGatewayOutput{}, nil
}

// DescribeInternetGateways supports the attachment.vpc-id and internet-gateway-id filters
func (m *MockEC2Client) DescribeInternetGateways(ctx context.Context, params *ec2.DescribeInternetGatewaysInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("DescribeInternetGateways"); err != nil {
		return nil, err
	}
	fs := newFilterSet(params.Filters)
	if err := fs.check("attachment.vpc-id", "internet-gateway-id"); err != nil {
		return nil, err
	}
	for _, id := range params.InternetGatewayIds {
		if _, ok := m.InternetGateways[id]; !ok {
			return nil, APIError("InvalidInternetGatewayID.NotFound", fmt.Sprintf("The internetGateway ID '%s' does not exist", id))
		}
	}

	ids := idSet(params.InternetGatewayIds)
	out := &ec2.DescribeInternetGatewaysOutput{}
	for _, key := range sortedKeys(m.InternetGateways) {
		igw := m.InternetGateways[key]
		if ids != nil && !ids[key] {
			continue
		}
		var attached []string
		for _, a := range igw.Attachments {
			attached = append(attached, aws.ToString(a.VpcId))
		}
		if !fs.match("attachment.vpc-id", attached...) || !fs.match("internet-gateway-id", key) {
			continue
		}
		out.InternetGateways = append(out.InternetGateways, *igw)
	}
	return out, nil
}

// DetachInternetGateway fails with DependencyViolation while the VPC still
// has public addresses mapped
func (m *MockEC2Client) DetachInternetGateway(ctx context.Context, params *ec2.DetachInternetGatewayInput, optFns ...func(*ec2.Options)) (*ec2.DetachInternetGatewayOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("DetachInternetGateway"); err != nil {
		return nil, err
	}
	igwID, vpcID := aws.ToString(params.InternetGatewayId), aws.ToString(params.VpcId)
	igw, ok := m.InternetGateways[igwID]
	if !ok {
		return nil, APIError("InvalidInternetGatewayID.NotFound", fmt.Sprintf("The internetGateway ID '%s' does not exist", igwID))
	}
	idx := -1
	for i, a := range igw.Attachments {
		if aws.ToString(a.VpcId) == vpcID {
			idx = i
		}
	}
	if idx < 0 {
		return nil, APIError("Gateway.NotAttached", fmt.Sprintf("resource %s is not attached to network %s", igwID, vpcID))
	}
	for _, addr := range m.Addresses {
		inst, ok := m.Instances[aws.ToString(addr.InstanceId)]
		if ok && aws.ToString(inst.VpcId) == vpcID {
			return nil, APIError("DependencyViolation", fmt.Sprintf("Network %s has some mapped public address(es)", vpcID))
		}
	}
	igw.Attachments = append(igw.Attachments[:idx:idx], igw.Attachments[idx+1:]...)
	return &ec2.DetachInternetGatewayOutput{}, nil
}

// DeleteInternetGateway fails with DependencyViolation while the gateway is attached
func (m *MockEC2Client) DeleteInternetGateway(ctx context.Context, params *ec2.DeleteInternetGatewayInput, optFns ...func(*ec2.Options)) (*ec2.DeleteInternetGatewayOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("DeleteInternetGateway"); err != nil {
		return nil, err
	}
	id := aws.ToString(params.InternetGatewayId)
	igw, ok := m.InternetGateways[id]
	if !ok {
		return nil, APIError("InvalidInternetGatewayID.NotFound", fmt.Sprintf("The internetGateway ID '%s' does not exist", id))
	}
	if len(igw.Attachments) > 0 {
		return nil, APIError("DependencyViolation", fmt.Sprintf("The internetGateway '%s' has dependencies and cannot be deleted", id))
	}
	delete(m.InternetGateways, id)
	return &ec2.DeleteInternetGatewayOutput{}, nil
}

// DescribeNatGateways supports the vpc-id filter
func (m *MockEC2Client) DescribeNatGateways(ctx context.Context, params *ec2.DescribeNatGatewaysInput, optFns ...func(*ec2.Options)) (*ec2.DescribeNatGatewaysOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("DescribeNatGateways"); err != nil {
		return nil, err
	}
	fs := newFilterSet(params.Filter)
	if err := fs.check("vpc-id", "state"); err != nil {
		return nil, err
	}
	ids := idSet(params.NatGatewayIds)
	out := &ec2.DescribeNatGatewaysOutput{}
	for _, key := range sortedKeys(m.NatGateways) {
		gw := m.NatGateways[key]
		if ids != nil && !ids[key] {
			continue
		}
		if !fs.match("vpc-id", aws.ToString(gw.VpcId)) || !fs.match("state", string(gw.State)) {
			continue
		}
		out.NatGateways = append(out.NatGateways, *gw)
	}
	return out, nil
}

// DeleteNatGateway moves the gateway to deleted; it stays visible to describe
func (m *MockEC2Client) DeleteNatGateway(ctx context.Context, params *ec2.DeleteNatGatewayInput, optFns ...func(*ec2.Options)) (*ec2.DeleteNatGatewayOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("DeleteNatGateway"); err != nil {
		return nil, err
	}
	id := aws.ToString(params.NatGatewayId)
	gw, ok := m.NatGateways[id]
	if !ok || gw.State == types.NatGatewayStateDeleted {
		return nil, APIError("NatGatewayNotFound", fmt.Sprintf("The Nat Gateway %s was not found", id))
	}
	gw.State = types.NatGatewayStateDeleted
	return &ec2.DeleteNatGatewayOutput{NatGatewayId: aws.String(id)}, nil
}

// DescribeVpcPeeringConnections supports the requester-vpc-info.vpc-id filter
func (m *MockEC2Client) DescribeVpcPeeringConnections(ctx context.Context, params *ec2.DescribeVpcPeeringConnectionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcPeeringConnectionsOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("DescribeVpcPeeringConnections"); err != nil {
		return nil, err
	}
	fs := newFilterSet(params.Filters)
	if err := fs.check("requester-vpc-info.vpc-id", "accepter-vpc-info.vpc-id"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeVpcPeeringConnectionsOutput{}
	for _, key := range sortedKeys(m.PeeringConnections) {
		pcx := m.PeeringConnections[key]
		if !fs.match("requester-vpc-info.vpc-id", aws.ToString(pcx.RequesterVpcInfo.VpcId)) ||
			!fs.match("accepter-vpc-info.vpc-id", aws.ToString(pcx.AccepterVpcInfo.VpcId)) {
			continue
		}
		out.VpcPeeringConnections = append(out.VpcPeeringConnections, *pcx)
	}
	return out, nil
}

// DeleteVpcPeeringConnection removes a peering connection
func (m *MockEC2Client) DeleteVpcPeeringConnection(ctx context.Context, params *ec2.DeleteVpcPeeringConnectionInput, optFns ...func(*ec2.Options)) (*ec2.DeleteVpcPeeringConnectionOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("DeleteVpcPeeringConnection"); err != nil {
		return nil, err
	}
	id := aws.ToString(params.VpcPeeringConnectionId)
	if _, ok := m.PeeringConnections[id]; !ok {
		return nil, APIError("InvalidVpcPeeringConnectionID.NotFound", fmt.Sprintf("The vpcPeeringConnection ID '%s' does not exist", id))
	}
	delete(m.PeeringConnections, id)
	return &ec2.DeleteVpcPeeringConnectionOutput{Return: aws.Bool(true)}, nil
}

// DescribeNetworkInterfaces supports the vpc-id and subnet-id filters
func (m *MockEC2Client) DescribeNetworkInterfaces(ctx context.Context, params *ec2.DescribeNetworkInterfacesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeNetworkInterfacesOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("DescribeNetworkInterfaces"); err != nil {
		return nil, err
	}
	fs := newFilterSet(params.Filters)
	if err := fs.check("vpc-id", "subnet-id"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeNetworkInterfacesOutput{}
	for _, key := range sortedKeys(m.NetworkInterfaces) {
		n := m.NetworkInterfaces[key]
		if !fs.match("vpc-id", aws.ToString(n.VpcId)) || !fs.match("subnet-id", aws.ToString(n.SubnetId)) {
			continue
		}
		out.NetworkInterfaces = append(out.NetworkInterfaces, *n)
	}
	return out, nil
}

// DeleteNetworkInterface removes a network interface
func (m *MockEC2Client) DeleteNetworkInterface(ctx context.Context, params *ec2.DeleteNetworkInterfaceInput, optFns ...func(*ec2.Options)) (*ec2.DeleteNetworkInterfaceOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("DeleteNetworkInterface"); err != nil {
		return nil, err
	}
	id := aws.ToString(params.NetworkInterfaceId)
	if _, ok := m.NetworkInterfaces[id]; !ok {
		return nil, APIError("InvalidNetworkInterfaceID.NotFound", fmt.Sprintf("The networkInterface ID '%s' does not exist", id))
	}
	delete(m.NetworkInterfaces, id)
	return &ec2.DeleteNetworkInterfaceOutput{}, nil
}

// CreateTags applies tags to any resource the mock holds
func (m *MockEC2Client) CreateTags(ctx context.Context, params *ec2.CreateTagsInput, optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.begin("CreateTags"); err != nil {
		return nil, err
	}
	for _, id := range params.Resources {
		switch {
		case m.Vpcs[id] != nil:
			m.Vpcs[id].Tags = mergeTags(m.Vpcs[id].Tags, params.Tags)
		case m.Subnets[id] != nil:
			m.Subnets[id].Tags = mergeTags(m.Subnets[id].Tags, params.Tags)
		case m.InternetGateways[id] != nil:
			m.InternetGateways[id].Tags = mergeTags(m.InternetGateways[id].Tags, params.Tags)
		case m.SecurityGroups[id] != nil:
			m.SecurityGroups[id].Tags = mergeTags(m.SecurityGroups[id].Tags, params.Tags)
		case m.Instances[id] != nil:
			m.Instances[id].Tags = mergeTags(m.Instances[id].Tags, params.Tags)
		case m.RouteTables[id] != nil:
			m.RouteTables[id].Tags = mergeTags(m.RouteTables[id].Tags, params.Tags)
		case m.Addresses[id] != nil:
			m.Addresses[id].Tags = mergeTags(m.Addresses[id].Tags, params.Tags)
		default:
			return nil, APIError("InvalidID", fmt.Sprintf("The ID '%s' is not valid", id))
		}
	}
	return &ec2.CreateTagsOutput{}, nil
}

// TagValue returns the value of a tag on a resource held by the mock
func (m *MockEC2Client) TagValue(resourceID, key string) string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var tags []types.Tag
	switch {
	case m.Vpcs[resourceID] != nil:
		tags = m.Vpcs[resourceID].Tags
	case m.Subnets[resourceID] != nil:
		tags = m.Subnets[resourceID].Tags
	case m.InternetGateways[resourceID] != nil:
		tags = m.InternetGateways[resourceID].Tags
	case m.SecurityGroups[resourceID] != nil:
		tags = m.SecurityGroups[resourceID].Tags
	case m.Instances[resourceID] != nil:
		tags = m.Instances[resourceID].Tags
	case m.RouteTables[resourceID] != nil:
		tags = m.RouteTables[resourceID].Tags
	}
	for _, t := range tags {
		if aws.ToString(t.Key) == key {
			return aws.ToString(t.Value)
		}
	}
	return ""
}
