package integrity

// Progress observes a scan as it runs. Purely informational.
type Progress interface {
	FileProcessed(root string)
	RootFinished(root string, files int)
}

// NopProgress ignores progress.
type NopProgress struct{}

func (NopProgress) FileProcessed(string)     {}
func (NopProgress) RootFinished(string, int) {}
