package generation

// TrimHistory drops the oldest history lines until the combined prompt
// material fits within budgetChars. The current user text and retrieved
// context are never dropped.
func TrimHistory(req Request, budgetChars int) Request {
	if budgetChars <= 0 {
		return req
	}

	fixed := len(req.UserText) + len(req.SystemStyle)
	for _, p := range req.RetrievedContext {
		fixed += len(p)
	}

	total := fixed
	for _, line := range req.History {
		total += len(line)
	}
	if total <= budgetChars {
		return req
	}

	history := req.History
	for len(history) > 0 && total > budgetChars {
		total -= len(history[0])
		history = history[1:]
	}
	trimmed := req
	trimmed.History = history
	return trimmed
}
