// Package lua runs EVAL scripts with gopher-lua.
//
// Each script runs in a fresh Lua state with KEYS and ARGV set from the
// request. redis.call and redis.pcall hand commands to a Caller, which in
// the server routes them through the command gateway on the executor.
// Script bodies are cached by SHA1 digest in a ScriptStore.
package lua
