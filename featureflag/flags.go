package featureflag

type Flag string

const (
	FlagDisableForcedReinsert Flag = "DISABLE_FORCED_REINSERT"
	FlagDisableQueryStream    Flag = "DISABLE_QUERY_STREAM"
	FlagDisableSmokeTest      Flag = "DISABLE_SMOKE_TEST"
)
