package transport

import (
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// sampleFileDescriptor builds a minimal, self-contained FileDescriptorProto
// with a single message, standing in for what server reflection would
// return for a real Cosmos SDK query service.
func sampleFileDescriptor() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("test/sample.proto"),
		Package: proto.String("test"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("SampleMessage"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{
						Name:   proto.String("value"),
						Number: proto.Int32(1),
						Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
						Type:   descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
					},
				},
			},
		},
	}
}

// TestDescriptorSetRoundTrip verifies that a schema reflected once can be
// serialized to the bytes descriptorcache.SchemaEntry.Raw persists to disk,
// and rebuilt from those bytes alone (no network round-trip) into a
// descriptorSet that resolves the same message by its fully qualified name
// (C3's disk-cache read path, exercised by BinaryTransport.descriptorsFor).
func TestDescriptorSetRoundTrip(t *testing.T) {
	files := []*descriptorpb.FileDescriptorProto{sampleFileDescriptor()}

	built, err := buildDescriptorSet(files)
	if err != nil {
		t.Fatalf("buildDescriptorSet failed: %v", err)
	}
	if _, ok := built.messages["test.SampleMessage"]; !ok {
		t.Fatalf("buildDescriptorSet did not resolve test.SampleMessage")
	}

	raw, err := marshalFileDescriptors(files)
	if err != nil {
		t.Fatalf("marshalFileDescriptors failed: %v", err)
	}

	parsed, err := parseDescriptorSet(raw)
	if err != nil {
		t.Fatalf("parseDescriptorSet failed: %v", err)
	}
	if _, ok := parsed.messages["test.SampleMessage"]; !ok {
		t.Fatalf("parseDescriptorSet did not resolve test.SampleMessage from cached bytes")
	}
}

// TestParseDescriptorSet_RejectsGarbage ensures a corrupt disk cache entry
// is reported as an error rather than panicking or silently producing an
// empty, always-missing descriptor set.
func TestParseDescriptorSet_RejectsGarbage(t *testing.T) {
	if _, err := parseDescriptorSet([]byte{0xff, 0xff, 0xff, 0xff, 0xff}); err == nil {
		t.Fatal("expected an error for corrupt cached descriptor bytes")
	}
}
