package ports

// InputSource yields one answer per prompt. Implementations return
// domain.ErrExitRequested when the user asks to leave.
type InputSource interface {
	ReadLine(prompt string) (string, error)
	// ReadSecret must not echo the value or keep it in terminal history.
	ReadSecret(prompt string) (string, error)
}
