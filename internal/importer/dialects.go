package importer

import "github.com/cleared-dev/tally/internal/model"

// Built-in dialects in detection priority order. The generic credit card
// dialect comes last and only matches when indicator columns are present.
func builtinDialects() []*Dialect {
	return []*Dialect{
		canaraDialect(),
		hdfcDialect(),
		iciciDialect(),
		sbiDialect(),
		chaseDialect(),
		creditCardDialect(),
	}
}

func canaraDialect() *Dialect {
	return &Dialect{
		Key:         "canara",
		Name:        "Canara Bank",
		AccountType: model.AccountTypeSavings,
		HeaderSets: [][]string{
			{"Txn Date", "Description", "Debit", "Credit", "Balance"},
			{"Date", "Description", "Debit", "Credit", "Balance"},
			{"Transaction Date", "Transaction Remarks", "Withdrawal Amt", "Deposit Amt", "Balance"},
		},
		Map: func(r Row) Fields {
			return Fields{
				Date:         r.First("Txn Date", "Date", "Transaction Date"),
				Description:  r.First("Description", "Transaction Remarks"),
				Debit:        r.First("Debit", "Withdrawal Amt"),
				Credit:       r.First("Credit", "Deposit Amt"),
				Balance:      r.First("Balance"),
				ChequeNumber: r.First("Cheque No.", "Cheque No"),
				BranchCode:   r.First("Branch Code"),
			}
		},
	}
}

func hdfcDialect() *Dialect {
	return &Dialect{
		Key:         "hdfc",
		Name:        "HDFC Bank",
		AccountType: model.AccountTypeSavings,
		HeaderSets: [][]string{
			{"Date", "Narration", "Chq/Ref No", "Value Dt", "Withdrawal Amt", "Deposit Amt", "Closing Balance"},
			{"Transaction Date", "Transaction Remarks", "Cheque Number", "Value Date", "Withdrawal Amount", "Deposit Amount", "Balance"},
		},
		Map: func(r Row) Fields {
			return Fields{
				Date:         r.First("Date", "Transaction Date"),
				Description:  r.First("Narration", "Transaction Remarks"),
				Debit:        r.First("Withdrawal Amt", "Withdrawal Amount"),
				Credit:       r.First("Deposit Amt", "Deposit Amount"),
				Balance:      r.First("Closing Balance", "Balance"),
				ChequeNumber: r.First("Chq/Ref No", "Cheque Number"),
				ValueDate:    r.First("Value Dt", "Value Date"),
			}
		},
	}
}

func iciciDialect() *Dialect {
	return &Dialect{
		Key:         "icici",
		Name:        "ICICI Bank",
		AccountType: model.AccountTypeSavings,
		HeaderSets: [][]string{
			{"Transaction Date", "Cheque Number", "Transaction Remarks", "Withdrawal Amt", "Deposit Amt", "Balance"},
			{"Date", "Cheque No", "Narration", "Withdrawal", "Deposit", "Balance"},
		},
		Map: func(r Row) Fields {
			return Fields{
				Date:         r.First("Transaction Date", "Date"),
				Description:  r.First("Transaction Remarks", "Narration"),
				Debit:        r.First("Withdrawal Amt", "Withdrawal"),
				Credit:       r.First("Deposit Amt", "Deposit"),
				Balance:      r.First("Balance"),
				ChequeNumber: r.First("Cheque Number", "Cheque No"),
			}
		},
	}
}

func sbiDialect() *Dialect {
	return &Dialect{
		Key:         "sbi",
		Name:        "State Bank of India",
		AccountType: model.AccountTypeSavings,
		HeaderSets: [][]string{
			{"Txn Date", "Cheque Number", "Transaction Remarks", "Withdrawal Amt", "Deposit Amt", "Balance"},
			{"Date", "Cheque No", "Narration", "Withdrawal", "Deposit", "Balance"},
		},
		Map: func(r Row) Fields {
			return Fields{
				Date:         r.First("Txn Date", "Date"),
				Description:  r.First("Transaction Remarks", "Narration"),
				Debit:        r.First("Withdrawal Amt", "Withdrawal"),
				Credit:       r.First("Deposit Amt", "Deposit"),
				Balance:      r.First("Balance"),
				ChequeNumber: r.First("Cheque Number", "Cheque No"),
			}
		},
	}
}

// chaseDialect reads Chase checking exports: one signed Amount column and
// US month-first dates.
func chaseDialect() *Dialect {
	return &Dialect{
		Key:         "chase",
		Name:        "Chase",
		AccountType: model.AccountTypeCurrent,
		HeaderSets: [][]string{
			{"Details", "Posting Date", "Description", "Amount", "Type", "Balance"},
		},
		DateLayout: "01/02/2006",
		Sign:       NegativeIsDebit,
		Map: func(r Row) Fields {
			return Fields{
				Date:         r.First("Posting Date"),
				Description:  r.First("Description"),
				Amount:       r.First("Amount"),
				Balance:      r.First("Balance"),
				ChequeNumber: r.First("Check or Slip #"),
			}
		},
	}
}

func creditCardDialect() *Dialect {
	return &Dialect{
		Key:         "credit_card",
		Name:        "Credit Card",
		AccountType: model.AccountTypeCreditCard,
		HeaderSets: [][]string{
			{"Transaction Date", "Post Date", "Description", "Category", "Type", "Amount"},
			{"Date", "Description", "Category", "Amount", "Type"},
			{"Transaction Date", "Description", "Amount", "Category"},
			{"Date", "Post Date", "Description", "Category", "Type", "Amount"},
			{"Transaction Date", "Description", "Category", "Type", "Amount"},
		},
		Indicators: []string{"Post Date", "Category", "Type"},
		Sign:       NegativeIsCredit,
		Map: func(r Row) Fields {
			return Fields{
				Date:        r.First("Transaction Date", "Date"),
				Description: r.First("Description"),
				Amount:      r.First("Amount"),
				Kind:        r.First("Type"),
				Category:    r.First("Category"),
				PostDate:    r.First("Post Date"),
			}
		},
	}
}
