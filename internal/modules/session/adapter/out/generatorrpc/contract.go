package generatorrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	PluginMapKey      = "generator"
	serviceName       = "arena.generator.v1.Generator"
	jsonCodecName     = "json"
	methodGetMetadata = "/" + serviceName + "/GetMetadata"
	methodSituation   = "/" + serviceName + "/Situation"
	methodConsequence = "/" + serviceName + "/Consequence"
	methodEvolve      = "/" + serviceName + "/Evolve"
)

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "ARENA_GENERATOR",
	MagicCookieValue: "arena",
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type Empty struct{}

type Metadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Problem struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Context string `json:"context"`
}

type Choice struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Signal string `json:"signal"`
}

type PastDecision struct {
	Round    int    `json:"round"`
	ChoiceID string `json:"choice_id"`
	Signal   string `json:"signal"`
	Forced   bool   `json:"forced"`
}

type SituationRequest struct {
	Problem   Problem        `json:"problem"`
	UserID    string         `json:"user_id"`
	Archetype string         `json:"archetype"`
	Round     int32          `json:"round"`
	Decisions []PastDecision `json:"decisions"`
	Language  string         `json:"language"`
}

type SituationResponse struct {
	Situation string   `json:"situation"`
	Choices   []Choice `json:"choices"`
	Question  string   `json:"question"`
}

type ConsequenceRequest struct {
	Problem   Problem        `json:"problem"`
	Round     int32          `json:"round"`
	Situation string         `json:"situation"`
	Choice    Choice         `json:"choice"`
	Decisions []PastDecision `json:"decisions"`
	Language  string         `json:"language"`
}

type ConsequenceResponse struct {
	Consequences []string `json:"consequences"`
	Insight      string   `json:"insight"`
}

type EvolveRequest struct {
	Problem  Problem `json:"problem"`
	Prompt   string  `json:"prompt"`
	Partial  string  `json:"partial"`
	Language string  `json:"language"`
}

type EvolveResponse struct {
	Prompt string `json:"prompt"`
}

type GeneratorServer interface {
	GetMetadata(ctx context.Context, in *Empty) (*Metadata, error)
	Situation(ctx context.Context, in *SituationRequest) (*SituationResponse, error)
	Consequence(ctx context.Context, in *ConsequenceRequest) (*ConsequenceResponse, error)
	Evolve(ctx context.Context, in *EvolveRequest) (*EvolveResponse, error)
}

type GeneratorClient interface {
	GetMetadata(ctx context.Context) (*Metadata, error)
	Situation(ctx context.Context, in *SituationRequest) (*SituationResponse, error)
	Consequence(ctx context.Context, in *ConsequenceRequest) (*ConsequenceResponse, error)
	Evolve(ctx context.Context, in *EvolveRequest) (*EvolveResponse, error)
}

type generatorClient struct {
	conn grpc.ClientConnInterface
}

func NewGeneratorClient(conn grpc.ClientConnInterface) GeneratorClient {
	return &generatorClient{conn: conn}
}

func (c *generatorClient) GetMetadata(ctx context.Context) (*Metadata, error) {
	out := &Metadata{}
	if err := c.conn.Invoke(ctx, methodGetMetadata, &Empty{}, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *generatorClient) Situation(ctx context.Context, in *SituationRequest) (*SituationResponse, error) {
	out := &SituationResponse{}
	if err := c.conn.Invoke(ctx, methodSituation, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *generatorClient) Consequence(ctx context.Context, in *ConsequenceRequest) (*ConsequenceResponse, error) {
	out := &ConsequenceResponse{}
	if err := c.conn.Invoke(ctx, methodConsequence, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *generatorClient) Evolve(ctx context.Context, in *EvolveRequest) (*EvolveResponse, error) {
	out := &EvolveResponse{}
	if err := c.conn.Invoke(ctx, methodEvolve, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

// unary adapts a typed server method to a grpc.MethodDesc handler.
func unary[Req any, Resp any](name string, call func(context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				typed, ok := req.(*Req)
				if !ok {
					return nil, fmt.Errorf("invalid request type")
				}
				return call(ctx, typed)
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func RegisterGeneratorServer(server grpc.ServiceRegistrar, impl GeneratorServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*GeneratorServer)(nil),
		Methods: []grpc.MethodDesc{
			unary("GetMetadata", impl.GetMetadata),
			unary("Situation", impl.Situation),
			unary("Consequence", impl.Consequence),
			unary("Evolve", impl.Evolve),
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "schemas/generator-rpc-v1.proto",
	}, impl)
}

type GRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin
	Impl GeneratorServer
}

func (p *GRPCPlugin) GRPCServer(_ *plugin.GRPCBroker, server *grpc.Server) error {
	RegisterGeneratorServer(server, p.Impl)
	return nil
}

func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *plugin.GRPCBroker, conn *grpc.ClientConn) (any, error) {
	return NewGeneratorClient(conn), nil
}

func PluginMap(impl GeneratorServer) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginMapKey: &GRPCPlugin{Impl: impl},
	}
}
