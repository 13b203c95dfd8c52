package formula

import "fmt"

// Asset-class and account-type groupings shared by several metrics.
const (
	equityClasses      = `'largecap', 'smallcap', 'largevalue', 'smallvalue', 'internat', 'emerging', 'ips'`
	fixedIncomeClasses = `'highyldbond', 'inttermmun', 'investbond', 'shortermbond', 'shortermmun'`
	equityAccountTypes = `'Taxable Investment', 'Roth IRA', 'Qualified Retirement'`
)

// inCurrentYear keeps rows whose active range overlaps the current calendar
// year and rejects inverted ranges.
const inCurrentYear = `EXTRACT(YEAR FROM start_actual_date) <= EXTRACT(YEAR FROM CURRENT_DATE)
			AND (end_actual_date IS NULL OR EXTRACT(YEAR FROM end_actual_date) >= EXTRACT(YEAR FROM CURRENT_DATE))
			AND (end_actual_date IS NULL OR end_actual_date >= start_actual_date)`

// activeLoan keeps amortizing debts whose term still covers the current year.
const activeLoan = `total_value < 0
			AND repayment_type = 'PrincipalAndInterest'
			AND EXTRACT(YEAR FROM loan_date) <= EXTRACT(YEAR FROM CURRENT_DATE)
			AND (loan_term_in_years IS NULL
				OR EXTRACT(YEAR FROM loan_date) + loan_term_in_years >= EXTRACT(YEAR FROM CURRENT_DATE))`

const clientAge = `EXTRACT(YEAR FROM AGE(CURRENT_DATE, hh_date_of_birth))`

var clientsFrag = &fragment{
	alias:  "cl",
	fields: []string{"name", "age", "present"},
	query: func(s Scope) string {
		return fmt.Sprintf(`SELECT client_id,
		client_name AS name,
		%s AS age,
		TRUE AS present
	FROM core.clients
	WHERE %s`, clientAge, s.where("client_id"))
	},
}

var holdingsFrag = &fragment{
	alias:  "ho",
	fields: []string{"total", "equity", "fixed_income", "cash", "largest"},
	query: func(s Scope) string {
		return fmt.Sprintf(`SELECT client_id,
		COALESCE(SUM(value), 0) AS total,
		COALESCE(SUM(value) FILTER (WHERE asset_class IN (%s)), 0) AS equity,
		COALESCE(SUM(value) FILTER (WHERE asset_class IN (%s)), 0) AS fixed_income,
		COALESCE(SUM(value) FILTER (WHERE asset_class = 'cash'), 0) AS cash,
		MAX(value) FILTER (WHERE value > 0) AS largest
	FROM core.holdings
	WHERE %s
	GROUP BY client_id`, equityClasses, fixedIncomeClasses, s.where("client_id"))
	},
}

var realEstateFrag = &fragment{
	alias:  "re",
	fields: []string{"total", "residence"},
	query: func(s Scope) string {
		return fmt.Sprintf(`SELECT client_id,
		COALESCE(SUM(total_value), 0) AS total,
		COALESCE(SUM(total_value) FILTER (WHERE sub_type = 'Residence'), 0) AS residence
	FROM core.real_estate_assets
	WHERE %s
	GROUP BY client_id`, s.where("client_id"))
	},
}

var residenceMortgageFrag = &fragment{
	alias:  "rm",
	fields: []string{"mortgage"},
	query: func(s Scope) string {
		return fmt.Sprintf(`SELECT l.client_id,
		COALESCE(SUM(ABS(l.total_value)), 0) AS mortgage
	FROM core.liability_note_accounts l
	JOIN core.real_estate_assets r ON r.account_id = l.real_estate_id AND r.client_id = l.client_id
	WHERE %s
		AND l.sub_type = 'Mortgage'
		AND r.sub_type = 'Residence'
	GROUP BY l.client_id`, s.where("l.client_id"))
	},
}

var businessesFrag = &fragment{
	alias:  "bz",
	fields: []string{"total"},
	query: func(s Scope) string {
		return fmt.Sprintf(`SELECT client_id,
		COALESCE(SUM(amount), 0) AS total
	FROM core.businesses
	WHERE %s
	GROUP BY client_id`, s.where("client_id"))
	},
}

var investmentsFrag = &fragment{
	alias:  "ia",
	fields: []string{"total", "equity", "cash", "taxable_investment", "education", "taxable_accounts"},
	query: func(s Scope) string {
		return fmt.Sprintf(`SELECT client_id,
		COALESCE(SUM(total_value), 0) AS total,
		COALESCE(SUM(holdings_value) FILTER (WHERE fact_type_name IN (%s)), 0) AS equity,
		COALESCE(SUM(cash_balance) FILTER (WHERE fact_type_name = 'Cash Alternative'), 0) AS cash,
		COALESCE(SUM(total_value) FILTER (WHERE fact_type_name = 'Taxable Investment'), 0) AS taxable_investment,
		COALESCE(SUM(total_value) FILTER (WHERE sub_type ~* 'education'), 0) AS education,
		COALESCE(SUM(total_value) FILTER (WHERE sub_type ~* 'taxable' OR account_name ~* 'taxable|brokerage'), 0) AS taxable_accounts
	FROM core.investment_deposit_accounts
	WHERE %s
	GROUP BY client_id`, equityAccountTypes, s.where("client_id"))
	},
}

var personalPropertyFrag = &fragment{
	alias:  "pp",
	fields: []string{"total"},
	query: func(s Scope) string {
		return fmt.Sprintf(`SELECT client_id,
		COALESCE(SUM(total_value), 0) AS total
	FROM core.personal_property_accounts
	WHERE %s
	GROUP BY client_id`, s.where("client_id"))
	},
}

var liabilitiesFrag = &fragment{
	alias:  "li",
	fields: []string{"owed", "net", "loans"},
	query: func(s Scope) string {
		return fmt.Sprintf(`SELECT client_id,
		COALESCE(SUM(ABS(total_value)), 0) AS owed,
		COALESCE(SUM(total_value), 0) AS net,
		COALESCE(
			json_agg(json_build_object(
				'principal', ABS(total_value),
				'rate', interest_rate,
				'term_years', loan_term_in_years
			) ORDER BY account_id) FILTER (WHERE %s),
			'[]'::json
		)::text AS loans
	FROM core.liability_note_accounts
	WHERE %s
	GROUP BY client_id`, activeLoan, s.where("client_id"))
	},
}

var incomesFrag = &fragment{
	alias: "inc",
	fields: []string{
		"earned", "social_security", "pension", "real_estate", "business", "total",
		"retirement", "survivor", "all_annual", "earned_active",
	},
	query: func(s Scope) string {
		return fmt.Sprintf(`SELECT client_id,
		COALESCE(SUM(current_year_amount) FILTER (WHERE income_type = 'Salary'), 0) AS earned,
		COALESCE(SUM(current_year_amount) FILTER (WHERE income_type = 'SocialSecurity'), 0) AS social_security,
		COALESCE(SUM(current_year_amount) FILTER (WHERE income_type = 'Pension'), 0) AS pension,
		COALESCE(SUM(current_year_amount) FILTER (WHERE income_type = 'Real Estate'), 0) AS real_estate,
		COALESCE(SUM(current_year_amount) FILTER (WHERE income_type = 'Business'), 0) AS business,
		COALESCE(SUM(current_year_amount), 0) AS total,
		COALESCE(SUM(annual_amount) FILTER (WHERE deleted IS NOT TRUE
			AND (end_type IS DISTINCT FROM 'Age' OR end_value > 65)), 0) AS retirement,
		COALESCE(SUM(annual_amount) FILTER (WHERE deleted IS NOT TRUE
			AND (end_type = 'SpousesDeath' OR owner_type = 'Spouse')
			AND (end_value IS NULL OR end_value > EXTRACT(YEAR FROM CURRENT_DATE))), 0) AS survivor,
		COALESCE(SUM(annual_amount) FILTER (WHERE deleted IS NOT TRUE), 0) AS all_annual,
		COALESCE(SUM(current_year_amount) FILTER (WHERE income_type = 'Salary' AND deleted IS NOT TRUE), 0) AS earned_active
	FROM core.incomes
	WHERE %s
	GROUP BY client_id`, s.where("client_id"))
	},
}

var expensesFrag = &fragment{
	alias:  "ex",
	fields: []string{"giving", "living", "survivor", "education", "cars", "non_ltc"},
	query: func(s Scope) string {
		return fmt.Sprintf(`SELECT client_id,
		COALESCE(SUM(annual_amount) FILTER (WHERE type = 'Spending'
			AND sub_type = 'GivingAndPhilanthropy'
			AND annual_amount > 0
			AND %[1]s), 0) AS giving,
		COALESCE(SUM(annual_amount) FILTER (WHERE type = 'Living'
			AND annual_amount > 0
			AND %[1]s), 0) AS living,
		COALESCE(SUM(annual_amount) FILTER (WHERE end_type IS DISTINCT FROM 'AtSecondDeath'
			AND (end_actual_date IS NULL OR end_actual_date > CURRENT_DATE)), 0) AS survivor,
		COALESCE(SUM(annual_amount) FILTER (WHERE type ~* 'education'
			OR sub_type ~* 'education'
			OR expense_item ~* 'education'), 0) AS education,
		COALESCE(SUM(annual_amount) FILTER (WHERE type ~* 'car|vehicle|auto'
			OR sub_type ~* 'car|vehicle|auto'
			OR expense_item ~* 'car|vehicle|auto'), 0) AS cars,
		COALESCE(SUM(annual_amount) FILTER (WHERE NOT (COALESCE(type, '') ~* 'ltc'
			OR COALESCE(expense_item, '') ~* 'long term care')), 0) AS non_ltc
	FROM core.expenses
	WHERE %[2]s
	GROUP BY client_id`, inCurrentYear, s.where("client_id"))
	},
}

// retirementExpensesFrag sums expenses that continue past the retirement
// horizon. Age-bounded expenses count only when their span outlasts it.
var retirementExpensesFrag = &fragment{
	alias:  "rx",
	fields: []string{"annual"},
	query: func(s Scope) string {
		return fmt.Sprintf(`SELECT e.client_id,
		COALESCE(SUM(e.annual_amount) FILTER (WHERE e.end_type IS DISTINCT FROM 'Age'
			OR EXTRACT(YEAR FROM AGE(e.end_actual_date, e.start_actual_date))
				> 65 - EXTRACT(YEAR FROM AGE(CURRENT_DATE, c.hh_date_of_birth))), 0) AS annual
	FROM core.expenses e
	JOIN core.clients c ON c.client_id = e.client_id
	WHERE %s
	GROUP BY e.client_id`, s.where("e.client_id"))
	},
}

var savingsFrag = &fragment{
	alias:  "sv",
	fields: []string{"active", "retirement", "education", "taxable"},
	query: func(s Scope) string {
		return fmt.Sprintf(`SELECT client_id,
		COALESCE(SUM(calculated_annual_amount_usd) FILTER (WHERE start_type = 'Active'), 0) AS active,
		COALESCE(SUM(COALESCE(calculated_annual_amount_usd, fixed_amount_usd)) FILTER (WHERE destination ~* 'retirement|401k|ira'
			OR account_id::text ~* 'retirement|401k|ira'), 0) AS retirement,
		COALESCE(SUM(COALESCE(calculated_annual_amount_usd, fixed_amount_usd)) FILTER (WHERE destination ~* 'education'), 0) AS education,
		COALESCE(SUM(COALESCE(calculated_annual_amount_usd, fixed_amount_usd)) FILTER (WHERE NOT (destination ~* 'retirement|education')), 0) AS taxable
	FROM core.savings
	WHERE %s
	GROUP BY client_id`, s.where("client_id"))
	},
}

var lifeInsuranceFrag = &fragment{
	alias:  "lf",
	fields: []string{"life", "death_benefits"},
	query: func(s Scope) string {
		return fmt.Sprintf(`SELECT client_id,
		COALESCE(SUM(death_benefit) FILTER (WHERE fact_type_name = 'Life Insurance'), 0) AS life,
		COALESCE(SUM(death_benefit) FILTER (WHERE death_benefit > 0), 0) AS death_benefits
	FROM core.life_insurance_annuity_accounts
	WHERE %s
	GROUP BY client_id`, s.where("client_id"))
	},
}

var disabilityFrag = &fragment{
	alias:  "di",
	fields: []string{"disability", "ltc", "business", "ltd", "ltc_premiums"},
	query: func(s Scope) string {
		return fmt.Sprintf(`SELECT client_id,
		COALESCE(SUM(benefit_amount) FILTER (WHERE fact_type_name IN ('Disability Policy', 'Business Disability Policy')), 0) AS disability,
		COALESCE(SUM(benefit_amount) FILTER (WHERE sub_type = 'PersonalLT'), 0) AS ltc,
		COALESCE(SUM(benefit_amount) FILTER (WHERE sub_type = 'BusinessReducingTerm'), 0) AS business,
		COALESCE(SUM(benefit_amount) FILTER (WHERE fact_type_name ~* 'disability'), 0) AS ltd,
		COALESCE(SUM(COALESCE(annual_premium, 0)) FILTER (WHERE sub_type ~* 'ltc'
			OR fact_type_name ~* 'long term care'), 0) AS ltc_premiums
	FROM core.disability_ltc_insurance_accounts
	WHERE %s
	GROUP BY client_id`, s.where("client_id"))
	},
}

var propertyCasualtyFrag = &fragment{
	alias:  "pc",
	fields: []string{"umbrella", "flood"},
	query: func(s Scope) string {
		return fmt.Sprintf(`SELECT client_id,
		COALESCE(SUM(maximum_annual_benefit) FILTER (WHERE sub_type = 'Umbrella'), 0) AS umbrella,
		COALESCE(SUM(maximum_annual_benefit) FILTER (WHERE sub_type = 'Flood'), 0) AS flood
	FROM core.property_casualty_insurance_accounts
	WHERE %s
	GROUP BY client_id`, s.where("client_id"))
	},
}

// fragments lists every fragment in the order CTEs are emitted.
var fragments = []*fragment{
	clientsFrag,
	holdingsFrag,
	realEstateFrag,
	residenceMortgageFrag,
	businessesFrag,
	investmentsFrag,
	personalPropertyFrag,
	liabilitiesFrag,
	incomesFrag,
	expensesFrag,
	retirementExpensesFrag,
	savingsFrag,
	lifeInsuranceFrag,
	disabilityFrag,
	propertyCasualtyFrag,
}
