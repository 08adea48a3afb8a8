package runnerpb

import (
	"testing"

	"google.golang.org/protobuf/types/known/durationpb"
)

func TestPackUnpackResourceUsageRoundTrip(t *testing.T) {
	want := &POSIXResourceUsage{
		UserTime:               durationpb.New(1500000),
		SystemTime:              durationpb.New(250000),
		MaximumResidentSetSize: 16 * 1024 * 1024,
	}

	any, err := PackResourceUsage(want)
	if err != nil {
		t.Fatalf("PackResourceUsage: %v", err)
	}
	if any.TypeUrl != POSIXResourceUsageTypeURL {
		t.Errorf("TypeUrl = %q, want %q", any.TypeUrl, POSIXResourceUsageTypeURL)
	}

	got, err := UnpackResourceUsage(any)
	if err != nil {
		t.Fatalf("UnpackResourceUsage: %v", err)
	}
	if got.MaximumResidentSetSize != want.MaximumResidentSetSize {
		t.Errorf("MaximumResidentSetSize = %d, want %d", got.MaximumResidentSetSize, want.MaximumResidentSetSize)
	}
	if got.UserTime.AsDuration() != want.UserTime.AsDuration() {
		t.Errorf("UserTime = %v, want %v", got.UserTime.AsDuration(), want.UserTime.AsDuration())
	}
}
