package payroll

const (
	StatusMatched        MatchStatus = "MATCHED"
	StatusZeroNoActivity MatchStatus = "ZERO_NO_ACTIVITY"
	StatusSalaried       MatchStatus = "SALARIED"

	RoleName  = "name"
	RoleHours = "hours"
	RoleRate  = "rate"

	DropBlankName    = "blank_name"
	DropHeaderRepeat = "header_repeat"
	DropBadHours     = "invalid_hours"
	DropBadRate      = "invalid_rate"

	PolicyCaliforniaDaily = "california_daily"
	PolicyWBSStraightTime = "wbs_straight_time"

	hoursEpsilon = 1e-9
)
