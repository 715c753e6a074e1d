package probe

// Indirection layer to allow stubbing in tests

var (
	fnRun        = Run
	fnListModels = listModels
	fnGenerate   = generateOnce
	fnChat       = chatOnce
	fnServeMock  = serveMock
)
