package dynamo

// DynamoDB attribute names used in key and update expressions.
const (
	fieldEmail        = "email"
	fieldUsername     = "username"
	fieldAddress      = "address"
	fieldPhone        = "phone"
	fieldPasswordHash = "password_hash"
	fieldUpdatedAt    = "updated_at"
)
