// Package agent implements a single-agent task-execution loop.
//
// Given a natural-language objective, the loop repeatedly prompts a language
// model for its next action, decodes the reply into a typed Action, dispatches
// it to a registered tool, and folds the result back into a bounded memory
// that informs the next prompt. The run ends when the model emits the reserved
// "finish" action or the step budget is exhausted.
//
// # Architecture
//
// The package is organized around these core concepts:
//
//   - Registry: named tool descriptors with ordered parameter schemas,
//     validation, and panic-safe dispatch.
//   - Extract: the strict-then-lenient decoder that turns free-form model
//     text into exactly one Action. It is total: it always produces an
//     Action, flagging how degraded the parse was.
//   - Store: a FIFO-bounded record of past steps plus errors and per-tool
//     usage counters, exportable as a JSON snapshot.
//   - BuildPrompt: a pure function rendering objective, tool catalog, recent
//     memory, and optional context into the next prompt.
//   - Loop: the orchestrator driving prompt -> model -> extract -> validate
//     -> dispatch -> record until a terminal state.
//
// Model failures and unparseable replies never crash a run: the loop fails
// open to graceful termination, recording what went wrong.
//
// # Quick Start
//
//	adapter := llmclient.NewScriptedAdapter(`{"thought":"done","action":"finish","args":{}}`)
//	registry := agent.NewRegistry(nil)
//	agent.RegisterCoreTools(registry, agent.NewLocalEnvironment(""), agent.CoreToolOptions{})
//	loop := agent.NewLoop("say hello", llmclient.NewClient(adapter), registry, nil, nil)
//
//	summary, err := loop.Run(ctx)
package agent
