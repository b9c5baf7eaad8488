package server

// builtinCommands returns the full command table
func builtinCommands() []Command {
	var cmds []Command
	for _, group := range [][]Command{
		serverCommands(),
		keyCommands(),
		stringCommands(),
		hashCommands(),
		listCommands(),
		setCommands(),
		zsetCommands(),
		pubsubCommands(),
		transactionCommands(),
		scriptCommands(),
	} {
		cmds = append(cmds, group...)
	}
	return cmds
}
