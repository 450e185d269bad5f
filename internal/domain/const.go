package domain

type ctxKey string

const (
	// RequesterAddressCtxKey carries the normalized wallet address of
	// the requester through the request context.
	RequesterAddressCtxKey ctxKey = "ds-requesterAddress"
)

const (
	RequesterAddressHeader = "x-requester-address"
)
