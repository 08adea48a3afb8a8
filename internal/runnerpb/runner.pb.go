// Code generated by protoc-gen-go from runner.proto. Hand-maintained in
// this tree because protoc is not available in this build environment —
// see DESIGN.md. DO NOT reformat the struct tags; proto.Marshal derives
// wire encoding from them via the legacy reflection path in
// google.golang.org/protobuf/protoadapt.

package runnerpb

import (
	"github.com/golang/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/durationpb"
)

// CheckReadinessRequest is the argument to Runner.CheckReadiness.
type CheckReadinessRequest struct {
	Path string `protobuf:"bytes,1,opt,name=path,proto3" json:"path,omitempty"`
}

func (m *CheckReadinessRequest) Reset()         { *m = CheckReadinessRequest{} }
func (m *CheckReadinessRequest) String() string { return proto.CompactTextString(m) }
func (*CheckReadinessRequest) ProtoMessage()    {}

func (m *CheckReadinessRequest) GetPath() string {
	if m != nil {
		return m.Path
	}
	return ""
}

// CheckReadinessResponse is the (empty) success reply of Runner.CheckReadiness.
type CheckReadinessResponse struct{}

func (m *CheckReadinessResponse) Reset()         { *m = CheckReadinessResponse{} }
func (m *CheckReadinessResponse) String() string { return proto.CompactTextString(m) }
func (*CheckReadinessResponse) ProtoMessage()    {}

// RunRequest is a command to execute inside a fresh sandbox.
type RunRequest struct {
	Arguments             []string          `protobuf:"bytes,1,rep,name=arguments,proto3" json:"arguments,omitempty"`
	EnvironmentVariables  map[string]string `protobuf:"bytes,2,rep,name=environment_variables,json=environmentVariables,proto3" json:"environment_variables,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
	WorkingDirectory      string            `protobuf:"bytes,3,opt,name=working_directory,json=workingDirectory,proto3" json:"working_directory,omitempty"`
	InputRootDirectory    string            `protobuf:"bytes,4,opt,name=input_root_directory,json=inputRootDirectory,proto3" json:"input_root_directory,omitempty"`
	TemporaryDirectory    string            `protobuf:"bytes,5,opt,name=temporary_directory,json=temporaryDirectory,proto3" json:"temporary_directory,omitempty"`
	StdoutPath            string            `protobuf:"bytes,6,opt,name=stdout_path,json=stdoutPath,proto3" json:"stdout_path,omitempty"`
	StderrPath            string            `protobuf:"bytes,7,opt,name=stderr_path,json=stderrPath,proto3" json:"stderr_path,omitempty"`
}

func (m *RunRequest) Reset()         { *m = RunRequest{} }
func (m *RunRequest) String() string { return proto.CompactTextString(m) }
func (*RunRequest) ProtoMessage()    {}

func (m *RunRequest) GetArguments() []string {
	if m != nil {
		return m.Arguments
	}
	return nil
}

func (m *RunRequest) GetEnvironmentVariables() map[string]string {
	if m != nil {
		return m.EnvironmentVariables
	}
	return nil
}

func (m *RunRequest) GetWorkingDirectory() string {
	if m != nil {
		return m.WorkingDirectory
	}
	return ""
}

func (m *RunRequest) GetInputRootDirectory() string {
	if m != nil {
		return m.InputRootDirectory
	}
	return ""
}

func (m *RunRequest) GetTemporaryDirectory() string {
	if m != nil {
		return m.TemporaryDirectory
	}
	return ""
}

func (m *RunRequest) GetStdoutPath() string {
	if m != nil {
		return m.StdoutPath
	}
	return ""
}

func (m *RunRequest) GetStderrPath() string {
	if m != nil {
		return m.StderrPath
	}
	return ""
}

// RunResponse is the reply to Runner.Run.
type RunResponse struct {
	ExitCode      int32       `protobuf:"varint,1,opt,name=exit_code,json=exitCode,proto3" json:"exit_code,omitempty"`
	ResourceUsage []*anypb.Any `protobuf:"bytes,2,rep,name=resource_usage,json=resourceUsage,proto3" json:"resource_usage,omitempty"`
}

func (m *RunResponse) Reset()         { *m = RunResponse{} }
func (m *RunResponse) String() string { return proto.CompactTextString(m) }
func (*RunResponse) ProtoMessage()    {}

func (m *RunResponse) GetExitCode() int32 {
	if m != nil {
		return m.ExitCode
	}
	return 0
}

func (m *RunResponse) GetResourceUsage() []*anypb.Any {
	if m != nil {
		return m.ResourceUsage
	}
	return nil
}

// POSIXResourceUsage mirrors buildbarn's pkg/proto/resourceusage message of
// the same name; it is registered under the "buildbarn.resourceusage"
// package (not "buildbarn.runner") so the Any type URL this binary
// produces matches what callers of bb_runner already expect.
type POSIXResourceUsage struct {
	UserTime               *durationpb.Duration `protobuf:"bytes,1,opt,name=user_time,json=userTime,proto3" json:"user_time,omitempty"`
	SystemTime             *durationpb.Duration `protobuf:"bytes,2,opt,name=system_time,json=systemTime,proto3" json:"system_time,omitempty"`
	MaximumResidentSetSize int64                `protobuf:"varint,3,opt,name=maximum_resident_set_size,json=maximumResidentSetSize,proto3" json:"maximum_resident_set_size,omitempty"`
}

func (m *POSIXResourceUsage) Reset()         { *m = POSIXResourceUsage{} }
func (m *POSIXResourceUsage) String() string { return proto.CompactTextString(m) }
func (*POSIXResourceUsage) ProtoMessage()    {}

func (m *POSIXResourceUsage) GetUserTime() *durationpb.Duration {
	if m != nil {
		return m.UserTime
	}
	return nil
}

func (m *POSIXResourceUsage) GetSystemTime() *durationpb.Duration {
	if m != nil {
		return m.SystemTime
	}
	return nil
}

func (m *POSIXResourceUsage) GetMaximumResidentSetSize() int64 {
	if m != nil {
		return m.MaximumResidentSetSize
	}
	return 0
}

// POSIXResourceUsageTypeURL is the Any type URL callers must see embedded
// in RunResponse.resource_usage.
const POSIXResourceUsageTypeURL = "type.googleapis.com/buildbarn.resourceusage.POSIXResourceUsage"

func init() {
	proto.RegisterType((*CheckReadinessRequest)(nil), "buildbarn.runner.CheckReadinessRequest")
	proto.RegisterType((*CheckReadinessResponse)(nil), "buildbarn.runner.CheckReadinessResponse")
	proto.RegisterType((*RunRequest)(nil), "buildbarn.runner.RunRequest")
	proto.RegisterType((*RunResponse)(nil), "buildbarn.runner.RunResponse")
	proto.RegisterType((*POSIXResourceUsage)(nil), "buildbarn.resourceusage.POSIXResourceUsage")
}

// PackResourceUsage marshals usage into the typed Any the spec requires.
func PackResourceUsage(usage *POSIXResourceUsage) (*anypb.Any, error) {
	return anypb.New(protoadapt.MessageV2(usage))
}

// UnpackResourceUsage is the inverse of PackResourceUsage, used by tests
// asserting the Any round-trips bit-for-bit.
func UnpackResourceUsage(any *anypb.Any) (*POSIXResourceUsage, error) {
	usage := &POSIXResourceUsage{}
	if err := any.UnmarshalTo(protoadapt.MessageV2(usage)); err != nil {
		return nil, err
	}
	return usage, nil
}
