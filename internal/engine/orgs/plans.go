package orgs

import "projecthub/internal/platform/models"

const trialDays = 14

var planLimits = map[models.Plan]models.Limits{
	models.PlanFree:         {MaxUsers: 5, MaxProjects: 3, MaxStorageGB: 1, MaxAPICallsPerMonth: 1_000},
	models.PlanStarter:      {MaxUsers: 20, MaxProjects: 10, MaxStorageGB: 10, MaxAPICallsPerMonth: 10_000},
	models.PlanProfessional: {MaxUsers: 100, MaxProjects: 50, MaxStorageGB: 100, MaxAPICallsPerMonth: 100_000},
	models.PlanEnterprise:   {MaxUsers: 1000, MaxProjects: 1000, MaxStorageGB: 1000, MaxAPICallsPerMonth: 1_000_000},
}

// LimitsFor returns the quota attached to plan.
func LimitsFor(plan models.Plan) (models.Limits, bool) {
	l, ok := planLimits[plan]
	return l, ok
}
