package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/ibc-tools/escrow-auditor/internal/descriptorcache"
)

const maxRecvMessageSize = 100 * 1024 * 1024

func unmarshalJSON(data []byte, v *map[string]any) error {
	return json.Unmarshal(data, v)
}

func unmarshalProto(data []byte, m *descriptorpb.FileDescriptorProto) error {
	return proto.Unmarshal(data, m)
}

// grpcMethod describes where to find a typed Cosmos SDK / IBC gRPC query and
// which fields of the request message carry the caller's parameters. No
// compiled .pb.go stubs are generated for these services here; instead the
// binary transport asks the server's own reflection service for the message
// descriptors it needs and builds requests dynamically with dynamicpb.
type grpcMethod struct {
	fullMethod  string // e.g. "/cosmos.bank.v1beta1.Query/Balance"
	requestType string // fully qualified message name
	paramFields map[string]string
}

var grpcMethods = map[Operation]grpcMethod{
	OpBankBalance: {
		fullMethod:  "/cosmos.bank.v1beta1.Query/Balance",
		requestType: "cosmos.bank.v1beta1.QueryBalanceRequest",
		paramFields: map[string]string{"address": "address", "denom": "denom"},
	},
	OpBankAllBalances: {
		fullMethod:  "/cosmos.bank.v1beta1.Query/AllBalances",
		requestType: "cosmos.bank.v1beta1.QueryAllBalancesRequest",
		paramFields: map[string]string{"address": "address"},
	},
	OpBankSupplyByDenom: {
		fullMethod:  "/cosmos.bank.v1beta1.Query/SupplyOf",
		requestType: "cosmos.bank.v1beta1.QuerySupplyOfRequest",
		paramFields: map[string]string{"denom": "denom"},
	},
	OpIbcDenomTrace: {
		fullMethod:  "/ibc.applications.transfer.v1.Query/DenomTrace",
		requestType: "ibc.applications.transfer.v1.QueryDenomTraceRequest",
		paramFields: map[string]string{"hash": "hash"},
	},
	OpIbcChannel: {
		fullMethod:  "/ibc.core.channel.v1.Query/Channel",
		requestType: "ibc.core.channel.v1.QueryChannelRequest",
		paramFields: map[string]string{"port": "port_id", "channel": "channel_id"},
	},
	OpIbcConnection: {
		fullMethod:  "/ibc.core.connection.v1.Query/Connection",
		requestType: "ibc.core.connection.v1.QueryConnectionRequest",
		paramFields: map[string]string{"connection_id": "connection_id"},
	},
	OpIbcClientState: {
		fullMethod:  "/ibc.core.client.v1.Query/ClientState",
		requestType: "ibc.core.client.v1.QueryClientStateRequest",
		paramFields: map[string]string{"client_id": "client_id"},
	},
	OpIbcEscrowAddress: {
		fullMethod:  "/ibc.applications.transfer.v1.Query/EscrowAddress",
		requestType: "ibc.applications.transfer.v1.QueryEscrowAddressRequest",
		paramFields: map[string]string{"port": "port_id", "channel": "channel_id"},
	},
	OpTendermintNodeInfo: {
		fullMethod:  "/cosmos.base.tendermint.v1beta1.Service/GetNodeInfo",
		requestType: "cosmos.base.tendermint.v1beta1.GetNodeInfoRequest",
		paramFields: map[string]string{},
	},
}

// BinaryTransport issues typed gRPC queries against a chain's grpc[]
// endpoints, resolving message schemas at runtime via server reflection
// instead of compiled protobuf stubs. A schema, once fetched for a given
// endpoint, is cached in-process for the life of the transport; when a
// descriptorcache.Cache is attached via WithSchemaCache, a reflected schema
// also persists to disk and survives process restarts, re-reflected only
// when the Client's version-check gate (C3) says the live app_version has
// moved (see client.go's checkSchemaRefresh).
type BinaryTransport struct {
	mu       sync.Mutex
	conns    map[string]*grpc.ClientConn
	fileDesc map[string]*descriptorSet

	cache *descriptorcache.Cache
}

// descriptorSet is the subset of a reflected FileDescriptorSet this
// transport needs: a lookup from fully-qualified message name to its
// protoreflect.MessageDescriptor.
type descriptorSet struct {
	messages map[string]protoreflect.MessageDescriptor
}

// NewBinaryTransport creates an empty BinaryTransport. Connections and
// reflected schemas are established lazily, per endpoint, on first use.
func NewBinaryTransport() *BinaryTransport {
	return &BinaryTransport{
		conns:    make(map[string]*grpc.ClientConn),
		fileDesc: make(map[string]*descriptorSet),
	}
}

// WithSchemaCache attaches the disk-backed descriptor cache (C3). Without
// it, reflected schemas live only for the process's lifetime and every new
// process re-reflects every endpoint once on first use.
func (b *BinaryTransport) WithSchemaCache(cache *descriptorcache.Cache) *BinaryTransport {
	b.cache = cache
	return b
}

// Close tears down every gRPC connection this transport has opened.
func (b *BinaryTransport) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for addr, conn := range b.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close connection to %s: %w", addr, err)
		}
	}
	return firstErr
}

// Fetch issues one typed gRPC call for op against endpointAddr (host:port,
// no scheme) and returns the response decoded into a generic map via
// protojson, so callers can treat it uniformly with TextTransport's output.
// forceSchemaRefresh skips a cached schema (in-process or on disk) and
// re-reflects unconditionally; the Client sets it once per Query when C3
// reports the chain's live app_version has moved since the schema was last
// reflected.
func (b *BinaryTransport) Fetch(ctx context.Context, endpointAddr string, op Operation, params Params, forceSchemaRefresh bool) (map[string]any, error) {
	method, ok := grpcMethods[op]
	if !ok {
		return nil, fmt.Errorf("unsupported operation for binary transport: %s", op)
	}

	conn, err := b.connFor(ctx, endpointAddr)
	if err != nil {
		return nil, err
	}

	descs, err := b.descriptorsFor(ctx, endpointAddr, conn, forceSchemaRefresh)
	if err != nil {
		return nil, err
	}

	reqDesc, ok := descs.messages[method.requestType]
	if !ok {
		return nil, &DecodeError{Endpoint: endpointAddr, Err: fmt.Errorf("reflection did not expose message type %s", method.requestType)}
	}

	reqMsg := dynamicpb.NewMessage(reqDesc)
	for paramKey, fieldName := range method.paramFields {
		value := params[paramKey]
		if value == "" {
			continue
		}
		field := reqDesc.Fields().ByName(protoreflect.Name(fieldName))
		if field == nil {
			continue
		}
		reqMsg.Set(field, protoreflect.ValueOfString(value))
	}

	respDesc, err := b.responseDescriptor(descs, method)
	if err != nil {
		return nil, err
	}
	resp := dynamicpb.NewMessage(respDesc)

	if err := conn.Invoke(ctx, method.fullMethod, reqMsg, resp); err != nil {
		return nil, &ClientError{Endpoint: endpointAddr, StatusCode: 0}
	}

	data, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(resp)
	if err != nil {
		return nil, &DecodeError{Endpoint: endpointAddr, Err: err}
	}

	var decoded map[string]any
	if err := unmarshalJSON(data, &decoded); err != nil {
		return nil, &DecodeError{Endpoint: endpointAddr, Err: err}
	}
	return decoded, nil
}

// responseDescriptor derives a Query service's response message name from
// its request message name by the Cosmos SDK's own naming convention
// (QueryFooRequest -> QueryFooResponse), then looks it up in the already
// reflected descriptor set.
func (b *BinaryTransport) responseDescriptor(descs *descriptorSet, method grpcMethod) (protoreflect.MessageDescriptor, error) {
	respName := deriveResponseTypeName(method.requestType)
	desc, ok := descs.messages[respName]
	if !ok {
		return nil, fmt.Errorf("reflection did not expose response message type %s", respName)
	}
	return desc, nil
}

func deriveResponseTypeName(requestType string) string {
	const suffix = "Request"
	if len(requestType) > len(suffix) && requestType[len(requestType)-len(suffix):] == suffix {
		return requestType[:len(requestType)-len(suffix)] + "Response"
	}
	return requestType + "Response"
}

// connFor returns a cached gRPC connection to addr, dialing lazily on first
// use. Connections use insecure transport credentials, matching the plain
// grpc:// endpoints chain registries publish for public query nodes.
func (b *BinaryTransport) connFor(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if conn, ok := b.conns[addr]; ok {
		return conn, nil
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    30 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecvMessageSize)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial gRPC endpoint %s: %w", addr, err)
	}
	b.conns[addr] = conn
	return conn, nil
}

// descriptorsFor returns the descriptor set for addr. It checks the
// in-process cache first, then (unless forceRefresh) the disk-backed
// schema cache, and only falls back to a live reflection round-trip against
// the server's reflection service when neither has a usable entry or
// forceRefresh says the cached schema can no longer be trusted.
func (b *BinaryTransport) descriptorsFor(ctx context.Context, addr string, conn *grpc.ClientConn, forceRefresh bool) (*descriptorSet, error) {
	b.mu.Lock()
	cached, ok := b.fileDesc[addr]
	b.mu.Unlock()
	if ok && !forceRefresh {
		return cached, nil
	}

	if !forceRefresh && b.cache != nil {
		if entry, ok := b.cache.GetSchema(addr); ok {
			if descs, err := parseDescriptorSet(entry.Raw); err == nil {
				b.mu.Lock()
				b.fileDesc[addr] = descs
				b.mu.Unlock()
				return descs, nil
			}
		}
	}

	descs, files, err := reflectDescriptors(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to reflect schema from %s: %w", addr, err)
	}

	if b.cache != nil {
		if raw, marshalErr := marshalFileDescriptors(files); marshalErr == nil {
			b.cache.PutSchema(descriptorcache.SchemaEntry{Endpoint: addr, FetchedAt: time.Now(), Raw: raw})
		}
	}

	b.mu.Lock()
	b.fileDesc[addr] = descs
	b.mu.Unlock()
	return descs, nil
}

// marshalFileDescriptors serializes a flat file descriptor list into the
// bytes descriptorcache.SchemaEntry.Raw persists to disk.
func marshalFileDescriptors(files []*descriptorpb.FileDescriptorProto) ([]byte, error) {
	return proto.Marshal(&descriptorpb.FileDescriptorSet{File: files})
}

// parseDescriptorSet rebuilds a descriptorSet from bytes previously produced
// by marshalFileDescriptors, without any network round-trip.
func parseDescriptorSet(raw []byte) (*descriptorSet, error) {
	var fdSet descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(raw, &fdSet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached descriptor set: %w", err)
	}
	return buildDescriptorSet(fdSet.GetFile())
}

// buildDescriptorSet resolves a flat FileDescriptorProto list (as returned
// by reflection or re-parsed from the disk cache) into the message-name
// index the binary transport queries against. Using protodesc.NewFiles
// rather than parsing each file in isolation lets files that import one
// another resolve correctly.
func buildDescriptorSet(files []*descriptorpb.FileDescriptorProto) (*descriptorSet, error) {
	fileSet, err := protodesc.NewFiles(&descriptorpb.FileDescriptorSet{File: files})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reflected file descriptors: %w", err)
	}

	set := &descriptorSet{messages: make(map[string]protoreflect.MessageDescriptor)}
	fileSet.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		msgs := fd.Messages()
		for i := 0; i < msgs.Len(); i++ {
			md := msgs.Get(i)
			set.messages[string(md.FullName())] = md
		}
		return true
	})
	if len(set.messages) == 0 {
		return nil, fmt.Errorf("descriptor set contains no usable message descriptors")
	}
	return set, nil
}

// reflectDescriptors walks the server's reflection service for every Query
// service it advertises and collects every file descriptor it names,
// regardless of which service defines it, since a Cosmos SDK app exposes
// bank, ibc channel, ibc connection, and ibc transfer as distinct services.
// It returns both the resolved descriptorSet and the raw file list, so the
// caller can persist the latter to the schema cache verbatim.
func reflectDescriptors(ctx context.Context, conn *grpc.ClientConn) (*descriptorSet, []*descriptorpb.FileDescriptorProto, error) {
	client := grpc_reflection_v1.NewServerReflectionClient(conn)
	stream, err := client.ServerReflectionInfo(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer stream.CloseSend()

	services, err := listServices(stream)
	if err != nil {
		return nil, nil, err
	}

	var files []*descriptorpb.FileDescriptorProto
	seenFiles := make(map[string]bool)

	for _, svc := range services {
		fdProtoList, err := fileDescriptorsForSymbol(stream, svc)
		if err != nil {
			continue
		}
		for _, fdProto := range fdProtoList {
			if seenFiles[fdProto.GetName()] {
				continue
			}
			seenFiles[fdProto.GetName()] = true
			files = append(files, fdProto)
		}
	}

	set, err := buildDescriptorSet(files)
	if err != nil {
		return nil, nil, fmt.Errorf("server reflection returned no usable message descriptors: %w", err)
	}
	return set, files, nil
}

func listServices(stream grpc_reflection_v1.ServerReflection_ServerReflectionInfoClient) ([]string, error) {
	if err := stream.Send(&grpc_reflection_v1.ServerReflectionRequest{
		MessageRequest: &grpc_reflection_v1.ServerReflectionRequest_ListServices{},
	}); err != nil {
		return nil, err
	}
	resp, err := stream.Recv()
	if err != nil {
		return nil, err
	}
	list := resp.GetListServicesResponse()
	if list == nil {
		return nil, fmt.Errorf("reflection server did not return a service list")
	}
	names := make([]string, 0, len(list.GetService()))
	for _, s := range list.GetService() {
		names = append(names, s.GetName())
	}
	return names, nil
}

func fileDescriptorsForSymbol(stream grpc_reflection_v1.ServerReflection_ServerReflectionInfoClient, symbol string) ([]*descriptorpb.FileDescriptorProto, error) {
	if err := stream.Send(&grpc_reflection_v1.ServerReflectionRequest{
		MessageRequest: &grpc_reflection_v1.ServerReflectionRequest_FileContainingSymbol{
			FileContainingSymbol: symbol,
		},
	}); err != nil {
		return nil, err
	}
	resp, err := stream.Recv()
	if err != nil {
		return nil, err
	}
	fdResp := resp.GetFileDescriptorResponse()
	if fdResp == nil {
		return nil, fmt.Errorf("reflection did not return a file descriptor for %s", symbol)
	}

	files := make([]*descriptorpb.FileDescriptorProto, 0, len(fdResp.GetFileDescriptorProto()))
	for _, raw := range fdResp.GetFileDescriptorProto() {
		fdProto := &descriptorpb.FileDescriptorProto{}
		if err := unmarshalProto(raw, fdProto); err != nil {
			continue
		}
		files = append(files, fdProto)
	}
	return files, nil
}
