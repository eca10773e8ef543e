package repoargs

type RepositoryName string

const (
	TransactionRepoName RepositoryName = "transaction"
	BalanceRepoName     RepositoryName = "balance"
	WithdrawalRepoName  RepositoryName = "withdrawal"
	ItemRepoName        RepositoryName = "item"
)
