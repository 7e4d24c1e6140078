package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// buildMatchPrompt assembles the transaction-matching prompt. The payload
// lists are embedded as JSON so the model works against exact IDs.
func buildMatchPrompt(req *MatchRequest) (string, error) {
	transactionsJSON, err := json.Marshal(req.Transactions)
	if err != nil {
		return "", fmt.Errorf("marshal transactions: %w", err)
	}
	vendorsJSON, err := json.Marshal(req.Vendors)
	if err != nil {
		return "", fmt.Errorf("marshal vendors: %w", err)
	}
	customersJSON, err := json.Marshal(req.Customers)
	if err != nil {
		return "", fmt.Errorf("marshal customers: %w", err)
	}
	accountsJSON, err := json.Marshal(req.ChartOfAccounts)
	if err != nil {
		return "", fmt.Errorf("marshal chart of accounts: %w", err)
	}

	prompt := fmt.Sprintf(`You are an expert accountant specializing in bank transaction matching.

You will receive a list of bank statement transactions, a list of vendors, a list of customers, and a chart of accounts. Each transaction carries its array index.

Your goal is to match each transaction's statement description to the correct vendor OR customer by name, and where possible to a chart of accounts entry.

Rules:
- Match on the statement description against vendor and customer names. Prefer exact or substring matches; semantic matches are allowed only when clearly the same business ("STARBUCKS COFFEE #123" matches vendor "Starbucks").
- Only return high-confidence matches. If a description is ambiguous or matches nothing, OMIT that transaction from the output entirely. Never guess.
- A transaction matches at most ONE entity: set vendorId OR customerId, never both.
- For the account: if nothing fits, omit chartOfAccountId. An entity match without an account is fine, and an account match without an entity is fine.
- Reference transactions strictly by their "index" value. Never reference the same index twice.

Return STRICT JSON only, no code fences, no commentary, exactly this shape:
{"matchedTransactions": [{"rawTransactionIndex": 0, "vendorId": "...", "customerId": "...", "chartOfAccountId": "..."}]}
Omit vendorId/customerId/chartOfAccountId keys that do not apply.

Transactions:
%s

Vendors:
%s

Customers:
%s

Chart of Accounts:
%s
`, transactionsJSON, vendorsJSON, customersJSON, accountsJSON)

	return prompt, nil
}

// buildInterlinkPrompt assembles the vendor/customer to chart-of-accounts
// linking prompt.
func buildInterlinkPrompt(req *InterlinkRequest) (string, error) {
	vendorsJSON, err := json.Marshal(req.Vendors)
	if err != nil {
		return "", fmt.Errorf("marshal vendors: %w", err)
	}
	customersJSON, err := json.Marshal(req.Customers)
	if err != nil {
		return "", fmt.Errorf("marshal customers: %w", err)
	}
	accountsJSON, err := json.Marshal(req.ChartOfAccounts)
	if err != nil {
		return "", fmt.Errorf("marshal chart of accounts: %w", err)
	}

	prompt := fmt.Sprintf(`You are an expert accounting system AI. Your task is to analyze lists of vendors, customers, and a chart of accounts (COA) to establish links between them.

You will be given three JSON lists:
1. Vendors: each with an id and the free text of their default expense account.
2. Customers: each with an id and the free text of their default revenue account.
3. Chart of Accounts: the full chart, with ids, names, numbers, and sub-account details.

Match the defaultExpenseAccount text of each vendor and the defaultRevenueAccount text of each customer to the most appropriate account in the COA.

Matching priority:
1. First, try to match the text against subAccountName or subAccountNumber.
2. Only if no sub-account matches, match against accountName or accountNumber.
3. Matches should be as exact as possible. When both a sub-account and its parent would match, choose the sub-account entry.

If a vendor's default expense account or a customer's default revenue account is empty, or cannot be reliably matched to any account, leave that entity out of the output entirely.

Return STRICT JSON only, no code fences, no commentary, exactly this shape:
{"vendorLinks": [{"vendorId": "...", "chartOfAccountId": "..."}], "customerLinks": [{"customerId": "...", "chartOfAccountId": "..."}]}

Vendors:
%s

Customers:
%s

Chart of Accounts:
%s
`, vendorsJSON, customersJSON, accountsJSON)

	return prompt, nil
}

// buildGenerateCOAPrompt assembles the starting chart-of-accounts prompt.
func buildGenerateCOAPrompt(req *GenerateCOARequest) string {
	return fmt.Sprintf(`You are an expert accounting consultant. Generate a basic chart of accounts for the following industry:

Industry: %s

Provide a list of accounts with account name, account type (Asset, Liability, Equity, Revenue, Expense) and a brief description for each account.

Return STRICT JSON only, no code fences, no commentary, exactly this shape:
{"accounts": [{"accountName": "...", "accountType": "...", "accountDescription": "..."}]}
The accountType value must be one of: Asset, Liability, Equity, Revenue, Expense.
`, req.Industry)
}

// cleanModelJSON strips Markdown fences and surrounding junk that models
// emit despite instructions, keeping the outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
