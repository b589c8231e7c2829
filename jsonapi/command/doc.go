// Package command turns JSON:API write operations into commands and dispatches them
// through a per-command-type middleware pipeline that ends in a Store call.
//
// The default pipeline runs, in order:
//
//	resolve-model -> authorize -> validate -> trigger-hooks -> Store
//
// Store commands have no resolve-model stage. Each stage may short-circuit with a failed Result.
// Pipelines can be customized per command type with WithPipeline.
//
// Usage:
//
//	dispatcher, err := command.NewDispatcher(store,
//		command.WithAuthorizer(policies),
//		command.WithValidators(rules),
//		command.WithLogger(slog.Default()),
//	)
//
//	cmd, err := command.FromOperation(req, op)
//	result, err := dispatcher.Dispatch(ctx, command.WithHooks(cmd, hooks))
package command
