package globals

// Context keys
type ContextKey string

const IdentityKey ContextKey = "identity"
const TokenKey ContextKey = "token"
