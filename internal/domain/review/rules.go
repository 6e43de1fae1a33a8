package review

var allowedActions = map[Action]Status{
	ActionOpened:      StatusQueued,
	ActionSynchronize: StatusQueued,
	ActionReopened:    StatusQueued,
	ActionClosed:      StatusClosed,
}

// StatusForAction maps an allow-listed action to the task status it implies.
// ok is false for actions outside the allow-list.
func StatusForAction(action string) (Status, bool) {
	status, ok := allowedActions[Action(action)]
	return status, ok
}
