package contextkeys

// Custom key type to avoid collisions with other context users.
type contextKey string

// DBContextKey stores the *gorm.DB (pool or transaction) in the request context.
const DBContextKey = contextKey("db")
