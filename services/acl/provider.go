package acl

import "go.uber.org/fx"

// Options is named to avoid clashing with the Module model.
var Options = fx.Options(
	fx.Provide(NewService),
)
