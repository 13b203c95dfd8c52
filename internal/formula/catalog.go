package formula

import (
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wisdom-metrics/internal/actuarial"
	"github.com/sells-group/wisdom-metrics/internal/model"
)

// ErrUnknownMetric is returned for a key outside the catalog.
var ErrUnknownMetric = eris.New("formula: unknown metric")

// Metric is one catalog entry.
type Metric struct {
	model.MetricMetadata
	inputs []Ref
	eval   func(e *evaluator) model.Outcome
}

// Inputs returns the columns the metric reads.
func (m *Metric) Inputs() []Ref {
	return m.inputs
}

// Evaluate computes the metric from a result row containing its inputs.
func (m *Metric) Evaluate(row Row) model.Outcome {
	if row == nil {
		return model.NoData()
	}
	e := &evaluator{row: row}
	out := m.eval(e)
	if e.err != nil {
		return model.Failed(model.ErrCoercion, eris.Wrapf(e.err, "formula: %s", m.Key))
	}
	return out
}

// Shared input columns.
var (
	clientName    = clientsFrag.ref("name")
	clientAgeCol  = clientsFrag.ref("age")
	clientPresent = clientsFrag.ref("present")

	holdingsTotal       = holdingsFrag.ref("total")
	holdingsEquity      = holdingsFrag.ref("equity")
	holdingsFixedIncome = holdingsFrag.ref("fixed_income")
	holdingsCash        = holdingsFrag.ref("cash")
	holdingsLargest     = holdingsFrag.ref("largest")

	realEstateTotal     = realEstateFrag.ref("total")
	realEstateResidence = realEstateFrag.ref("residence")
	residenceMortgage   = residenceMortgageFrag.ref("mortgage")
	businessesTotal     = businessesFrag.ref("total")

	investmentsTotal      = investmentsFrag.ref("total")
	investmentsEquity     = investmentsFrag.ref("equity")
	investmentsCash       = investmentsFrag.ref("cash")
	investmentsTaxable    = investmentsFrag.ref("taxable_investment")
	investmentsEducation  = investmentsFrag.ref("education")
	investmentsBrokerage  = investmentsFrag.ref("taxable_accounts")
	personalPropertyTotal = personalPropertyFrag.ref("total")

	liabilitiesOwed  = liabilitiesFrag.ref("owed")
	liabilitiesNet   = liabilitiesFrag.ref("net")
	liabilitiesLoans = liabilitiesFrag.ref("loans")

	incomeEarned         = incomesFrag.ref("earned")
	incomeSocialSecurity = incomesFrag.ref("social_security")
	incomePension        = incomesFrag.ref("pension")
	incomeRealEstate     = incomesFrag.ref("real_estate")
	incomeBusiness       = incomesFrag.ref("business")
	incomeTotal          = incomesFrag.ref("total")
	incomeRetirement     = incomesFrag.ref("retirement")
	incomeSurvivor       = incomesFrag.ref("survivor")
	incomeAllAnnual      = incomesFrag.ref("all_annual")
	incomeEarnedActive   = incomesFrag.ref("earned_active")

	expenseGiving     = expensesFrag.ref("giving")
	expenseLiving     = expensesFrag.ref("living")
	expenseSurvivor   = expensesFrag.ref("survivor")
	expenseEducation  = expensesFrag.ref("education")
	expenseCars       = expensesFrag.ref("cars")
	expenseNonLTC     = expensesFrag.ref("non_ltc")
	expenseRetirement = retirementExpensesFrag.ref("annual")

	savingsActive     = savingsFrag.ref("active")
	savingsRetirement = savingsFrag.ref("retirement")
	savingsEducation  = savingsFrag.ref("education")
	savingsTaxable    = savingsFrag.ref("taxable")

	lifeInsurance = lifeInsuranceFrag.ref("life")
	deathBenefits = lifeInsuranceFrag.ref("death_benefits")

	disabilityBenefit = disabilityFrag.ref("disability")
	ltcBenefit        = disabilityFrag.ref("ltc")
	businessBenefit   = disabilityFrag.ref("business")
	ltdBenefit        = disabilityFrag.ref("ltd")
	ltcPremiums       = disabilityFrag.ref("ltc_premiums")

	umbrellaCoverage = propertyCasualtyFrag.ref("umbrella")
	floodCoverage    = propertyCasualtyFrag.ref("flood")
)

var (
	assetInputs         = []Ref{holdingsTotal, realEstateTotal, businessesTotal, investmentsTotal, personalPropertyTotal}
	planningAssetInputs = []Ref{investmentsTotal, realEstateTotal, personalPropertyTotal}
	expenseInputs       = []Ref{expenseGiving, savingsActive, liabilitiesLoans, incomeTotal, expenseLiving}
)

func concat(groups ...[]Ref) []Ref {
	var out []Ref
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// sumOf builds a currency metric that adds its inputs. Missing facts read as
// zero.
func sumOf(refs ...Ref) func(e *evaluator) model.Outcome {
	return func(e *evaluator) model.Outcome {
		return model.OK(e.sum(refs...))
	}
}

// ratio rounds num/den to two places; a zero denominator has no value.
func ratio(num, den float64) model.Outcome {
	v, ok := actuarial.Ratio(num, den)
	if !ok {
		return model.NoData()
	}
	return model.OK(actuarial.Round2(v))
}

func pv(cashflow float64, years float64) float64 {
	return actuarial.PresentValue(cashflow, years, actuarial.DiscountRate)
}

// debtService annualizes the active loans column.
func debtService(e *evaluator) float64 {
	raw := e.text(liabilitiesLoans)
	if raw == "" {
		return 0
	}
	var loans []actuarial.Loan
	if err := json.Unmarshal([]byte(raw), &loans); err != nil {
		if e.err == nil {
			e.err = eris.Wrap(err, "formula: decode active loans")
		}
		return 0
	}
	return actuarial.Round2(actuarial.TotalDebtService(loans))
}

func taxes(e *evaluator) float64 {
	return actuarial.Round2(e.num(incomeTotal) * 0.15)
}

func totalExpenses(e *evaluator) float64 {
	return actuarial.Round2(e.num(expenseGiving) + e.num(savingsActive) + debtService(e) + taxes(e) + e.num(expenseLiving))
}

func netWorth(e *evaluator) model.Outcome {
	return model.OK(e.sum(assetInputs...) - e.num(liabilitiesOwed))
}

func retirementRatio(e *evaluator) model.Outcome {
	if !e.present(clientPresent) {
		return model.NoData()
	}
	age, ok := e.opt(clientAgeCol)
	if !ok || age >= actuarial.RetirementAge {
		return model.NoData()
	}
	horizon := actuarial.RetirementAge - age
	resources := pv(e.num(incomeRetirement), horizon) +
		e.sum(planningAssetInputs...) +
		pv(e.num(savingsRetirement), horizon)
	needs := pv(e.num(expenseRetirement), horizon) + e.num(liabilitiesOwed)
	return ratio(resources, needs)
}

func survivorRatio(e *evaluator) model.Outcome {
	if !e.present(clientPresent) {
		return model.NoData()
	}
	resources := e.num(deathBenefits) +
		pv(e.num(incomeSurvivor), actuarial.SurvivorHorizon) +
		e.sum(planningAssetInputs...)
	needs := pv(e.num(expenseSurvivor), actuarial.SurvivorHorizon) + e.num(liabilitiesOwed)
	return ratio(resources, needs)
}

func educationRatio(e *evaluator) model.Outcome {
	if !e.present(clientPresent) {
		return model.NoData()
	}
	resources := pv(e.num(savingsEducation), actuarial.EducationHorizon) + e.num(investmentsEducation)
	needs := pv(e.num(expenseEducation), actuarial.EducationHorizon)
	return ratio(resources, needs)
}

func newCarsRatio(e *evaluator) model.Outcome {
	if !e.present(clientPresent) {
		return model.NoData()
	}
	resources := e.num(investmentsBrokerage) + pv(e.num(savingsTaxable), actuarial.NewCarsHorizon)
	needs := pv(e.num(expenseCars), actuarial.NewCarsHorizon)
	return ratio(resources, needs)
}

func ltcRatio(e *evaluator) model.Outcome {
	if !e.present(clientPresent) {
		return model.NoData()
	}
	resources := pv(e.num(incomeAllAnnual), actuarial.LTCHorizon) + e.sum(planningAssetInputs...)
	needs := pv(e.num(expenseNonLTC), actuarial.LTCHorizon) + pv(e.num(ltcPremiums), actuarial.LTCHorizon)
	return ratio(resources, needs)
}

func ltdRatio(e *evaluator) model.Outcome {
	if !e.present(clientPresent) {
		return model.NoData()
	}
	return ratio(e.num(ltdBenefit), e.num(incomeEarnedActive))
}

func diversificationRatio(e *evaluator) model.Outcome {
	largest, ok := e.opt(holdingsLargest)
	if !ok {
		return model.NoData()
	}
	share, ok := actuarial.Ratio(largest, e.num(holdingsTotal)+e.num(investmentsTotal))
	if !ok {
		return model.NoData()
	}
	return model.OK(actuarial.Round2(1 - share))
}

func meta(key, title string, cat model.Category, formula, description string, tables ...string) model.MetricMetadata {
	return model.MetricMetadata{
		Key:         key,
		Title:       title,
		Category:    cat,
		Formula:     formula,
		Description: description,
		Tables:      tables,
	}
}

var catalog = []*Metric{
	// Assets and liabilities.
	{
		MetricMetadata: meta("net-worth", "Net Worth", model.CategoryAssets,
			"Total Assets - Total Liabilities",
			"Net worth represents the difference between what you own (assets) and what you owe (liabilities). It's a measure of your overall financial health.",
			"holdings", "real_estate_assets", "liability_note_accounts", "investment_deposit_accounts", "personal_property_accounts", "businesses"),
		inputs: concat(assetInputs, []Ref{liabilitiesOwed}),
		eval:   netWorth,
	},
	{
		MetricMetadata: meta("portfolio-value", "Portfolio Value", model.CategoryAssets,
			"Sum of Investment Holdings + Investment Deposit Accounts",
			"Portfolio value represents the total value of your investment accounts including holdings and deposit accounts.",
			"holdings", "investment_deposit_accounts"),
		inputs: []Ref{holdingsTotal, investmentsTotal},
		eval:   sumOf(holdingsTotal, investmentsTotal),
	},
	{
		MetricMetadata: meta("real-estate-value", "Real Estate Value", model.CategoryAssets,
			"Sum of Real Estate Assets",
			"Real estate value represents the total value of all property investments you own.",
			"real_estate_assets"),
		inputs: []Ref{realEstateTotal},
		eval:   sumOf(realEstateTotal),
	},
	{
		MetricMetadata: meta("debt", "Debt", model.CategoryAssets,
			"Sum of All Liabilities",
			"Debt represents the total amount of money you owe across all loans and liabilities.",
			"liability_note_accounts"),
		inputs: []Ref{liabilitiesNet},
		eval: func(e *evaluator) model.Outcome {
			v := e.num(liabilitiesNet)
			if v < 0 {
				v = -v
			}
			return model.OK(v)
		},
	},
	{
		MetricMetadata: meta("equity", "Equity", model.CategoryAssets,
			"Equity Holdings + Investment Equity",
			"Equity represents your ownership in stocks and equity-based investments.",
			"holdings", "investment_deposit_accounts"),
		inputs: []Ref{holdingsEquity, investmentsEquity},
		eval:   sumOf(holdingsEquity, investmentsEquity),
	},
	{
		MetricMetadata: meta("fixed-income", "Fixed Income", model.CategoryAssets,
			"Sum of Fixed Income Holdings",
			"Fixed income represents investments that pay a fixed return, such as bonds.",
			"holdings"),
		inputs: []Ref{holdingsFixedIncome},
		eval:   sumOf(holdingsFixedIncome),
	},
	{
		MetricMetadata: meta("cash", "Cash", model.CategoryAssets,
			"Cash from Holdings + Cash from Investments",
			"Cash represents your liquid assets and cash equivalents.",
			"holdings", "investment_deposit_accounts"),
		inputs: []Ref{holdingsCash, investmentsCash},
		eval:   sumOf(holdingsCash, investmentsCash),
	},

	// Income.
	{
		MetricMetadata: meta("earned-income", "Earned Income", model.CategoryIncome,
			"Sum of Salary Income",
			"Earned income represents income from employment and active work.",
			"incomes"),
		inputs: []Ref{incomeEarned},
		eval:   sumOf(incomeEarned),
	},
	{
		MetricMetadata: meta("social-security-income", "Social Security Income", model.CategoryIncome,
			"Sum of Social Security Benefits",
			"Social security income represents government benefits received.",
			"incomes"),
		inputs: []Ref{incomeSocialSecurity},
		eval:   sumOf(incomeSocialSecurity),
	},
	{
		MetricMetadata: meta("pension-income", "Pension Income", model.CategoryIncome,
			"Sum of Pension Benefits",
			"Pension income represents retirement benefits from former employers.",
			"incomes"),
		inputs: []Ref{incomePension},
		eval:   sumOf(incomePension),
	},
	{
		MetricMetadata: meta("real-estate-income", "Real Estate Income", model.CategoryIncome,
			"Sum of Rental and Property Income",
			"Real estate income represents income generated from property investments.",
			"incomes"),
		inputs: []Ref{incomeRealEstate},
		eval:   sumOf(incomeRealEstate),
	},
	{
		MetricMetadata: meta("business-income", "Business Income", model.CategoryIncome,
			"Sum of Business Income",
			"Business income represents income from self-employment and business ownership.",
			"incomes"),
		inputs: []Ref{incomeBusiness},
		eval:   sumOf(incomeBusiness),
	},
	{
		MetricMetadata: meta("total-income", "Total Income", model.CategoryIncome,
			"Sum of All Income Sources",
			"Total income represents all income sources combined.",
			"incomes"),
		inputs: []Ref{incomeTotal},
		eval:   sumOf(incomeTotal),
	},

	// Expenses.
	{
		MetricMetadata: meta("current-year-giving", "Current Year Giving", model.CategoryExpenses,
			"Sum of Philanthropic Giving",
			"Current year giving represents donations and charitable contributions.",
			"expenses"),
		inputs: []Ref{expenseGiving},
		eval:   sumOf(expenseGiving),
	},
	{
		MetricMetadata: meta("current-year-savings", "Current Year Savings", model.CategoryExpenses,
			"Sum of Active Savings Plans",
			"Current year savings represents contributions to savings and investment accounts.",
			"savings"),
		inputs: []Ref{savingsActive},
		eval:   sumOf(savingsActive),
	},
	{
		MetricMetadata: meta("current-year-debt", "Current Year Debt", model.CategoryExpenses,
			"Sum of Annual Debt Payments",
			"Current year debt represents annual payments on outstanding loans.",
			"liability_note_accounts"),
		inputs: []Ref{liabilitiesLoans},
		eval: func(e *evaluator) model.Outcome {
			return model.OK(debtService(e))
		},
	},
	{
		MetricMetadata: meta("current-year-taxes", "Current Year Taxes", model.CategoryExpenses,
			"Estimated Tax Payments (15% of Income)",
			"Current year taxes represents estimated tax obligations.",
			"incomes"),
		inputs: []Ref{incomeTotal},
		eval: func(e *evaluator) model.Outcome {
			return model.OK(taxes(e))
		},
	},
	{
		MetricMetadata: meta("current-year-living-expenses", "Current Year Living Expenses", model.CategoryExpenses,
			"Sum of Living Expenses",
			"Current year living expenses represents day-to-day living costs.",
			"expenses"),
		inputs: []Ref{expenseLiving},
		eval:   sumOf(expenseLiving),
	},
	{
		MetricMetadata: meta("total-expenses", "Total Expenses", model.CategoryExpenses,
			"Sum of All Expense Categories",
			"Total expenses represents all expenses combined.",
			"expenses", "savings", "liability_note_accounts", "incomes"),
		inputs: expenseInputs,
		eval: func(e *evaluator) model.Outcome {
			return model.OK(totalExpenses(e))
		},
	},
	{
		MetricMetadata: meta("margin", "Margin", model.CategoryExpenses,
			"Total Income - Total Expenses",
			"Margin represents the difference between income and expenses.",
			"incomes", "expenses", "savings", "liability_note_accounts"),
		inputs: expenseInputs,
		eval: func(e *evaluator) model.Outcome {
			return model.OK(actuarial.Round2(e.num(incomeTotal) - totalExpenses(e)))
		},
	},

	// Insurance.
	{
		MetricMetadata: meta("life-insurance", "Life Insurance", model.CategoryInsurance,
			"Sum of Life Insurance Death Benefits",
			"Life insurance represents the total death benefit coverage.",
			"life_insurance_annuity_accounts"),
		inputs: []Ref{lifeInsurance},
		eval:   sumOf(lifeInsurance),
	},
	{
		MetricMetadata: meta("disability", "Disability", model.CategoryInsurance,
			"Sum of Disability Benefits",
			"Disability represents disability insurance coverage.",
			"disability_ltc_insurance_accounts"),
		inputs: []Ref{disabilityBenefit},
		eval:   sumOf(disabilityBenefit),
	},
	{
		MetricMetadata: meta("ltc", "LTC", model.CategoryInsurance,
			"Sum of Long-Term Care Benefits",
			"LTC represents long-term care insurance coverage.",
			"disability_ltc_insurance_accounts"),
		inputs: []Ref{ltcBenefit},
		eval:   sumOf(ltcBenefit),
	},
	{
		MetricMetadata: meta("umbrella", "Umbrella", model.CategoryInsurance,
			"Sum of Umbrella Insurance Coverage",
			"Umbrella represents excess liability insurance coverage.",
			"property_casualty_insurance_accounts"),
		inputs: []Ref{umbrellaCoverage},
		eval:   sumOf(umbrellaCoverage),
	},
	{
		MetricMetadata: meta("business-insurance", "Business Insurance", model.CategoryInsurance,
			"Sum of Business Insurance Benefits",
			"Business insurance represents business-related insurance coverage.",
			"disability_ltc_insurance_accounts"),
		inputs: []Ref{businessBenefit},
		eval:   sumOf(businessBenefit),
	},
	{
		MetricMetadata: meta("flood-insurance", "Flood Insurance", model.CategoryInsurance,
			"Sum of Flood Insurance Coverage",
			"Flood insurance represents flood damage insurance coverage.",
			"property_casualty_insurance_accounts"),
		inputs: []Ref{floodCoverage},
		eval:   sumOf(floodCoverage),
	},
	{
		MetricMetadata: meta("at-risk", "At Risk", model.CategoryInsurance,
			"Taxable Investments - Umbrella Coverage",
			"At risk represents exposure to liability beyond insurance coverage.",
			"investment_deposit_accounts", "property_casualty_insurance_accounts"),
		inputs: []Ref{investmentsTaxable, umbrellaCoverage},
		eval: func(e *evaluator) model.Outcome {
			return model.OK(e.num(investmentsTaxable) - e.num(umbrellaCoverage))
		},
	},

	// Future planning ratios.
	{
		MetricMetadata: meta("retirement-ratio", "Retirement Ratio", model.CategoryPlanning,
			"(Future Income PV + Current Assets + Retirement Savings PV) / (Future Expenses PV + Current Liabilities)",
			"Retirement ratio measures your readiness for retirement based on projected income and expenses.",
			"clients", "incomes", "expenses", "investment_deposit_accounts", "real_estate_assets", "personal_property_accounts", "savings", "liability_note_accounts"),
		inputs: concat([]Ref{clientPresent, clientAgeCol, incomeRetirement, savingsRetirement, expenseRetirement, liabilitiesOwed}, planningAssetInputs),
		eval:   retirementRatio,
	},
	{
		MetricMetadata: meta("survivor-ratio", "Survivor Ratio", model.CategoryPlanning,
			"(Life Insurance + Future Income PV + Current Assets) / (Future Expenses PV + Current Liabilities)",
			"Survivor ratio measures financial protection for surviving family members.",
			"clients", "incomes", "expenses", "investment_deposit_accounts", "real_estate_assets", "personal_property_accounts", "life_insurance_annuity_accounts", "liability_note_accounts"),
		inputs: concat([]Ref{clientPresent, deathBenefits, incomeSurvivor, expenseSurvivor, liabilitiesOwed}, planningAssetInputs),
		eval:   survivorRatio,
	},
	{
		MetricMetadata: meta("education-ratio", "Education Ratio", model.CategoryPlanning,
			"(Education Savings PV + Education Account Balances) / Education Expenses PV",
			"Education ratio measures preparation for education expenses.",
			"clients", "savings", "investment_deposit_accounts", "expenses"),
		inputs: []Ref{clientPresent, savingsEducation, investmentsEducation, expenseEducation},
		eval:   educationRatio,
	},
	{
		MetricMetadata: meta("new-cars-ratio", "New Cars Ratio", model.CategoryPlanning,
			"(Taxable Accounts + Taxable Savings PV) / Car Expenses PV",
			"New cars ratio measures preparation for vehicle purchases.",
			"clients", "investment_deposit_accounts", "savings", "expenses"),
		inputs: []Ref{clientPresent, investmentsBrokerage, savingsTaxable, expenseCars},
		eval:   newCarsRatio,
	},
	{
		MetricMetadata: meta("ltc-ratio", "LTC Ratio", model.CategoryPlanning,
			"(Future Income PV + Current Assets) / (Future Expenses PV + LTC Expenses PV)",
			"LTC ratio measures preparation for long-term care expenses.",
			"clients", "incomes", "investment_deposit_accounts", "real_estate_assets", "personal_property_accounts", "expenses", "disability_ltc_insurance_accounts"),
		inputs: concat([]Ref{clientPresent, incomeAllAnnual, expenseNonLTC, ltcPremiums}, planningAssetInputs),
		eval:   ltcRatio,
	},
	{
		MetricMetadata: meta("ltd-ratio", "LTD Ratio", model.CategoryPlanning,
			"LTD Value / Earned Income",
			"LTD ratio measures disability insurance coverage relative to income.",
			"clients", "disability_ltc_insurance_accounts", "incomes"),
		inputs: []Ref{clientPresent, ltdBenefit, incomeEarnedActive},
		eval:   ltdRatio,
	},

	// Wisdom Index ratios.
	{
		MetricMetadata: meta("savings-ratio", "Savings Ratio", model.CategoryWisdomIndex,
			"Current Year Savings / Total Income",
			"Savings ratio measures the proportion of income directed to active savings for the current year.",
			"savings", "incomes"),
		inputs: []Ref{savingsActive, incomeTotal},
		eval: func(e *evaluator) model.Outcome {
			return ratio(e.num(savingsActive), e.num(incomeTotal))
		},
	},
	{
		MetricMetadata: meta("giving-ratio", "Giving Ratio", model.CategoryWisdomIndex,
			"Current Year Giving / Total Income",
			"Giving ratio measures charitable giving as a share of total income for the current year.",
			"expenses", "incomes"),
		inputs: []Ref{expenseGiving, incomeTotal},
		eval: func(e *evaluator) model.Outcome {
			return ratio(e.num(expenseGiving), e.num(incomeTotal))
		},
	},
	{
		MetricMetadata: meta("reserves-ratio", "Reserves Ratio", model.CategoryWisdomIndex,
			"(Cash Holdings + Cash in Investments) / Living Expenses * 0.5",
			"Reserves ratio measures short-term cash coverage of living expenses (half-year target).",
			"holdings", "investment_deposit_accounts", "expenses"),
		inputs: []Ref{holdingsCash, investmentsCash, expenseLiving},
		eval: func(e *evaluator) model.Outcome {
			return ratio(0.5*e.sum(holdingsCash, investmentsCash), e.num(expenseLiving))
		},
	},
	{
		MetricMetadata: meta("debt-ratio", "Debt Ratio", model.CategoryWisdomIndex,
			"Home Equity / Home Value",
			"Debt ratio measures mortgage leverage on the primary residence based on equity to value.",
			"real_estate_assets", "liability_note_accounts"),
		inputs: []Ref{realEstateResidence, residenceMortgage},
		eval: func(e *evaluator) model.Outcome {
			value := e.num(realEstateResidence)
			return ratio(value-e.num(residenceMortgage), value)
		},
	},
	{
		MetricMetadata: meta("diversification-ratio", "Diversification Ratio", model.CategoryWisdomIndex,
			"1 - (Largest Holding / Total Portfolio)",
			"Diversification ratio measures concentration risk by comparing the largest position to the total portfolio.",
			"holdings", "investment_deposit_accounts"),
		inputs: []Ref{holdingsLargest, holdingsTotal, investmentsTotal},
		eval:   diversificationRatio,
	},
}

var byKey = func() map[string]*Metric {
	m := make(map[string]*Metric, len(catalog))
	for _, metric := range catalog {
		if _, dup := m[metric.Key]; dup {
			panic(eris.Errorf("formula: duplicate metric %s", metric.Key))
		}
		m[metric.Key] = metric
	}
	return m
}()

// Lookup returns the metric registered under key.
func Lookup(key string) (*Metric, error) {
	m, ok := byKey[key]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownMetric, "%q", key)
	}
	return m, nil
}

// All returns every metric in catalog order.
func All() []*Metric {
	out := make([]*Metric, len(catalog))
	copy(out, catalog)
	return out
}

// Keys returns every metric key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(catalog))
	for _, m := range catalog {
		keys = append(keys, m.Key)
	}
	sort.Strings(keys)
	return keys
}

// Metadata returns the static description of a metric.
func Metadata(key string) (model.MetricMetadata, bool) {
	m, ok := byKey[key]
	if !ok {
		return model.MetricMetadata{}, false
	}
	return m.MetricMetadata, true
}

// SummaryKeys are the metrics reported for every client in roster views.
var SummaryKeys = []string{
	"net-worth",
	"portfolio-value",
	"total-income",
	"total-expenses",
	"margin",
	"life-insurance",
	"retirement-ratio",
}
