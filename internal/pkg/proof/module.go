package proof

import (
	"go.uber.org/fx"

	"github.com/polkiloo/loyaltyledger/internal/config"
)

// Module provides proof artifact primitives via fx.
var Module = fx.Options(
	fx.Provide(newCodec),
	fx.Provide(NewGenerator),
)

type codecParams struct {
	fx.In

	Config *config.Config
}

func newCodec(p codecParams) *Codec {
	return NewCodec(p.Config.ProofSecret)
}
