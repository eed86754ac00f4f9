// Package discord connects rollcall to Discord.
//
// Surface implements engine.Surface over the Discord REST API so a channel
// can serve as a display surface. Notifier posts diagnostics and audit lines
// to a log channel. Commands is the slash-command trigger surface: every
// mutating command writes to the store, posts an audit line, answers the
// operator ephemerally, then triggers a reconciliation pass.
package discord
