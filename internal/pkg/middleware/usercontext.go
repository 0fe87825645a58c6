package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/LucasPerrin/Crealance/app/models"
	"github.com/LucasPerrin/Crealance/internal/pkg/billing"
	"github.com/LucasPerrin/Crealance/internal/pkg/database"
	"github.com/LucasPerrin/Crealance/internal/pkg/entitlements"
	"github.com/LucasPerrin/Crealance/internal/pkg/session"
	"github.com/LucasPerrin/Crealance/internal/pkg/usercontext"
)

// UserContextMiddleware sets up the complete user context for every request
// This centralizes user session handling and eliminates code duplication
func UserContextMiddleware(c *fiber.Ctx) error {
	anonymous := func() error {
		c.Locals(usercontext.KeyUserContext, usercontext.UserContext{
			IsLoggedIn: false,
			IsAdmin:    false,
			Plan:       string(entitlements.PlanFree),
		})
		c.Locals(usercontext.KeyFromProtected, false)
		return c.Next()
	}

	// Get session with error handling
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return anonymous()
	}

	// Get user ID from session
	userID := sess.Get(usercontext.KeyUserID)
	if userID == nil {
		return anonymous()
	}
	uid, ok := userID.(uint)
	if !ok || uid == 0 {
		return anonymous()
	}

	username := session.GetSessionValue(c, usercontext.KeyUsername)
	role := session.GetSessionValue(c, usercontext.KeyUserRole)

	// Determine plan with session-first strategy
	plan := session.GetSessionValue(c, usercontext.KeyUserPlan)
	if plan == "" {
		plan = string(entitlements.PlanFree)
		if db := database.GetDB(); db != nil {
			svc := billing.NewServiceFromDB(db, entitlements.PricingFromEnv())
			if p, err := svc.CurrentPlan(c.Context(), uid, time.Now()); err == nil {
				plan = string(p)
			}
		}
		// cache in session for subsequent requests
		_ = session.SetSessionValue(c, usercontext.KeyUserPlan, plan)
	}

	userCtx := usercontext.UserContext{
		UserID:     uid,
		Username:   username,
		Role:       role,
		IsLoggedIn: true,
		IsAdmin:    role == models.ROLE_ADMIN,
		Plan:       plan,
	}
	c.Locals(usercontext.KeyUserContext, userCtx)
	c.Locals(usercontext.KeyFromProtected, true)

	return c.Next()
}
