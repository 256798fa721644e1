package tool

// BankProgram is one lender's advertised financing program.
type BankProgram struct {
	Bank  string `json:"bank"`
	Rate  string `json:"rate"`
	Terms string `json:"terms"`
}

// BankPrograms returns the current lender program sheet.
func BankPrograms() []BankProgram {
	return []BankProgram{
		{Bank: "Bank A", Rate: "as low as 4.99% with approved credit", Terms: "up to 72 months"},
		{Bank: "Bank B", Rate: "as low as 5.49% with approved credit", Terms: "up to 84 months"},
		{Bank: "Manufacturer Finance", Rate: "as low as 3.99% with approved credit", Terms: "up to 60 months"},
	}
}
