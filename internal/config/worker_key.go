package config

type WorkerKeyStruct struct {
	PersistAnswersQueue   string
	SealFallbackQueue     string
	PersistIntegrityQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:   "persist_answers_queue",
	SealFallbackQueue:     "seal_fallback_queue",
	PersistIntegrityQueue: "persist_integrity_queue",
}
