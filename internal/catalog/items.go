package catalog

// Default returns the built-in bot catalog. Prices and formulas mirror the
// published calculator; keep both in sync when the offering changes.
func Default() *Catalog {
	return New(defaultItems)
}

var defaultItems = []Item{
	{
		ID: "receptionist", Name: "AI Receptionist", Category: "Phase 1",
		MonthlyPriceCents: 100000, SetupFeeCents: 200000,
		Description: "Answers every call, triages and books patients 24/7",
		Icon:        "📞",
		Params: []Param{
			{Key: "missedCalls", Label: "Missed calls per month", Default: 500, Unit: "calls not answered", Min: 0, Max: 2000, Step: 10},
			{Key: "callConversion", Label: "Call to booking conversion", Default: 20, Unit: "of answered calls become bookings", Min: 5, Max: 60, Step: 1, Suffix: "%"},
			{Key: "firstVisitFee", Label: "Average first visit fee", Default: 150, Unit: "per new patient visit", Min: 50, Max: 500, Step: 10, Prefix: "$"},
		},
		Benefit: func(in map[string]float64) float64 {
			return in["missedCalls"] * 0.65 * (in["callConversion"] / 100) * in["firstVisitFee"]
		},
	},
	{
		ID: "sick-day", Name: "Sick Day Rescheduler", Category: "Phase 2",
		MonthlyPriceCents: 10000, SetupFeeCents: 50000,
		Description: "Auto-calls and reschedules all patients when a physio is out",
		Icon:        "🤒",
		Params: []Param{
			{Key: "sickDays", Label: "Sick days across all physios/year", Default: 6, Unit: "total sick days per year", Min: 0, Max: 50, Step: 1},
			{Key: "apptsPerDay", Label: "Appointments per physio/day", Default: 8, Unit: "average daily bookings", Min: 1, Max: 20, Step: 1},
			{Key: "rescheduleRate", Label: "Rescheduled successfully", Default: 70, Unit: "of patients rebook same week", Min: 20, Max: 95, Step: 5, Suffix: "%"},
			{Key: "avgApptFee", Label: "Average appointment fee", Default: 100, Unit: "per rescheduled appointment", Min: 50, Max: 300, Step: 10, Prefix: "$"},
		},
		Benefit: func(in map[string]float64) float64 {
			return in["sickDays"] * in["apptsPerDay"] * (in["rescheduleRate"] / 100) * in["avgApptFee"] / 12
		},
	},
	{
		ID: "retention", Name: "Retention Bot", Category: "Phase 3",
		MonthlyPriceCents: 60000, SetupFeeCents: 150000,
		Description: "Keeps patients on their full recommended treatment course",
		Icon:        "🔄",
		Params: []Param{
			{Key: "activePatients", Label: "Active patients per month", Default: 100, Unit: "patients in active treatment", Min: 10, Max: 1000, Step: 10},
			{Key: "dropOffRate", Label: "Current drop-off rate", Default: 40, Unit: "leave before completing course", Min: 10, Max: 80, Step: 5, Suffix: "%"},
			{Key: "followUpFee", Label: "Average follow-up visit fee", Default: 100, Unit: "per follow-up session", Min: 50, Max: 300, Step: 10, Prefix: "$"},
			{Key: "visitsPerCourse", Label: "Visits per treatment course", Default: 6, Unit: "avg sessions per full course", Min: 2, Max: 15, Step: 1},
		},
		Benefit: func(in map[string]float64) float64 {
			return in["activePatients"] * (in["dropOffRate"] / 100) * 0.3 * (in["visitsPerCourse"] * 0.5) * in["followUpFee"]
		},
	},
	{
		ID: "review", Name: "Review Bot", Category: "Add-on",
		MonthlyPriceCents: 10000, SetupFeeCents: 50000,
		Description: "Automatically prompts happy patients for Google reviews to win new business",
		Icon:        "⭐",
		Params: []Param{
			{Key: "monthlyPatients", Label: "Patients seen per month", Default: 80, Unit: "total monthly patient visits", Min: 10, Max: 500, Step: 10},
			{Key: "reviewValue", Label: "Value of a new Google review", Default: 300, Unit: "avg revenue per new patient from reviews", Min: 100, Max: 1000, Step: 50, Prefix: "$"},
		},
		Benefit: func(in map[string]float64) float64 {
			return in["monthlyPatients"] * 0.15 * in["reviewValue"]
		},
	},
	{
		ID: "nurture", Name: "New Patient Nurture", Category: "Add-on",
		MonthlyPriceCents: 60000, SetupFeeCents: 150000,
		Description: "Converts 20-30% more enquiries who didn't book immediately",
		Icon:        "🌱",
		Params: []Param{
			{Key: "unconverted", Label: "Unconverted enquiries/month", Default: 30, Unit: "people who enquired but didn't book", Min: 5, Max: 200, Step: 5},
			{Key: "currentConv", Label: "Current enquiry conversion rate", Default: 10, Unit: "currently converting without nurture", Min: 0, Max: 50, Step: 5, Suffix: "%"},
			{Key: "nurtureVisitFee", Label: "First visit fee", Default: 150, Unit: "per new patient first visit", Min: 50, Max: 500, Step: 10, Prefix: "$"},
		},
		// The lift over the current conversion rate can go negative for
		// practices already converting above 25%; callers clamp at zero.
		Benefit: func(in map[string]float64) float64 {
			lift := in["unconverted"]*0.25 - in["unconverted"]*(in["currentConv"]/100)
			return lift * in["nurtureVisitFee"]
		},
	},
	{
		ID: "reactivation", Name: "DB Reactivation", Category: "Add-on",
		MonthlyPriceCents: 100000, SetupFeeCents: 200000,
		Description: "Monthly outreach to lapsed patients to bring them back",
		Icon:        "📊",
		Params: []Param{
			{Key: "lapsedPatients", Label: "Lapsed patients in database", Default: 200, Unit: "patients not seen in 6+ months", Min: 50, Max: 5000, Step: 50},
			{Key: "reactivationFee", Label: "First visit fee", Default: 150, Unit: "per returning patient first visit", Min: 50, Max: 500, Step: 10, Prefix: "$"},
		},
		Benefit: func(in map[string]float64) float64 {
			return in["lapsedPatients"] * 0.03 * in["reactivationFee"]
		},
	},
	{
		ID: "waitlist", Name: "Waitlist & Cancellation Filler", Category: "Add-on",
		MonthlyPriceCents: 40000, SetupFeeCents: 100000,
		Description: "Fills cancelled appointment slots automatically from your waitlist",
		Icon:        "⏱️",
		Params: []Param{
			{Key: "cancellations", Label: "Cancellations per month", Default: 40, Unit: "last-minute cancellations", Min: 5, Max: 200, Step: 5},
			{Key: "waitlistApptValue", Label: "Average appointment value", Default: 100, Unit: "per filled appointment", Min: 50, Max: 300, Step: 10, Prefix: "$"},
		},
		Benefit: func(in map[string]float64) float64 {
			return in["cancellations"] * 0.45 * in["waitlistApptValue"]
		},
	},
	{
		ID: "intake", Name: "Pre-Visit Intake Bot", Category: "Add-on",
		MonthlyPriceCents: 30000, SetupFeeCents: 100000,
		Description: "Collects patient history, symptoms & insurance info before their first visit",
		Icon:        "📋",
		Params: []Param{
			{Key: "newPatientsMonth", Label: "New patients per month", Default: 30, Unit: "new patients arriving", Min: 5, Max: 200, Step: 5},
			{Key: "timeSaved", Label: "Minutes saved per patient", Default: 10, Unit: "admin time saved per intake", Min: 5, Max: 30, Step: 5},
			{Key: "hourlyRate", Label: "Physio hourly rate (cost)", Default: 80, Unit: "staff cost per hour", Min: 40, Max: 200, Step: 10, Prefix: "$"},
		},
		Benefit: func(in map[string]float64) float64 {
			return in["newPatientsMonth"] * in["timeSaved"] / 60 * in["hourlyRate"]
		},
	},
	{
		ID: "postop", Name: "Post-Treatment Check-In", Category: "Add-on",
		MonthlyPriceCents: 40000, SetupFeeCents: 100000,
		Description: "Automated follow-up after treatment milestones to drive rebookings",
		Icon:        "💬",
		Params: []Param{
			{Key: "discharged", Label: "Patients discharged per month", Default: 40, Unit: "patients finishing treatment", Min: 5, Max: 200, Step: 5},
			{Key: "rebookRate", Label: "Rebook rate from check-ins", Default: 15, Unit: "return for additional treatment", Min: 5, Max: 40, Step: 5, Suffix: "%"},
			{Key: "rebookValue", Label: "Average rebooking value", Default: 100, Unit: "per returning patient", Min: 50, Max: 300, Step: 10, Prefix: "$"},
		},
		Benefit: func(in map[string]float64) float64 {
			return in["discharged"] * (in["rebookRate"] / 100) * in["rebookValue"]
		},
	},
	{
		ID: "referral", Name: "Referral Program Bot", Category: "Add-on",
		MonthlyPriceCents: 30000, SetupFeeCents: 100000,
		Description: "Turns happy patients into your best source of new business",
		Icon:        "🤝",
		Params: []Param{
			{Key: "happyPatients", Label: "Satisfied patients per month", Default: 60, Unit: "patients likely to refer", Min: 10, Max: 300, Step: 10},
			{Key: "referralRate", Label: "Expected referral rate", Default: 8, Unit: "who actually refer someone", Min: 2, Max: 25, Step: 1, Suffix: "%"},
			{Key: "referralValue", Label: "Value of a referred patient", Default: 400, Unit: "lifetime value of referral", Min: 100, Max: 1000, Step: 50, Prefix: "$"},
		},
		Benefit: func(in map[string]float64) float64 {
			return in["happyPatients"] * (in["referralRate"] / 100) * in["referralValue"]
		},
	},
	{
		ID: "reminders", Name: "Smart Appointment Reminders", Category: "Add-on",
		MonthlyPriceCents: 20000, SetupFeeCents: 50000,
		Description: "Conversational reminders that slash no-shows by 60%+",
		Icon:        "🔔",
		Params: []Param{
			{Key: "monthlyAppts", Label: "Monthly appointments", Default: 300, Unit: "total scheduled appointments", Min: 50, Max: 2000, Step: 50},
			{Key: "noShowRate", Label: "Current no-show rate", Default: 12, Unit: "of patients who don't show", Min: 2, Max: 30, Step: 1, Suffix: "%"},
			{Key: "reminderApptValue", Label: "Average appointment value", Default: 100, Unit: "per recovered appointment", Min: 50, Max: 300, Step: 10, Prefix: "$"},
		},
		Benefit: func(in map[string]float64) float64 {
			return in["monthlyAppts"] * (in["noShowRate"] / 100) * 0.6 * in["reminderApptValue"]
		},
	},
}
