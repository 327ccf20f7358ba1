package es

// Operation names used in errors, logs and metrics.
const (
	OpCount         = "count"
	OpSearch        = "search"
	OpGet           = "get"
	OpIndex         = "index"
	OpIndexWithID   = "indexWithId"
	OpCreate        = "create"
	OpUpdate        = "update"
	OpRemove        = "remove"
	OpVersion       = "version"
	OpPutTemplate   = "putTemplate"
	OpBulkSend      = "bulkSend"
	OpNodeInfo      = "nodeInfo"
	OpNodeStats     = "nodeStats"
	OpIndexExists   = "indexExists"
	OpIndexCreate   = "indexCreate"
	OpIndexRefresh  = "indexRefresh"
	OpIndexRecovery = "indexRecovery"
)
