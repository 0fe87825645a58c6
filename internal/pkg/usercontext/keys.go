package usercontext

// Shared Locals/session keys used across controllers and middlewares
const (
	KeyUserContext   = "USER_CONTEXT"
	KeyUserID        = "user_id"
	KeyUsername      = "username"
	KeyUserRole      = "user_role"
	KeyUserPlan      = "user_plan"
	KeyFromProtected = "from_protected"
)
