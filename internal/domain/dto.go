package domain

type TransactionStatusType string

const (
	TransactionStatusPending   TransactionStatusType = "PENDING"
	TransactionStatusCompleted TransactionStatusType = "COMPLETED"
	TransactionStatusFailed    TransactionStatusType = "FAILED"
	TransactionStatusCancelled TransactionStatusType = "CANCELLED"
	TransactionStatusExpired   TransactionStatusType = "EXPIRED"
)

// IsTerminal сообщает, что из статуса нет переходов.
func (s TransactionStatusType) IsTerminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled, TransactionStatusExpired:
		return true
	default:
		return false
	}
}

// CanTransitionTo допускает только переход из PENDING в один из терминальных статусов.
func (s TransactionStatusType) CanTransitionTo(next TransactionStatusType) bool {
	return s == TransactionStatusPending && next.IsTerminal()
}

type ItemType string

const (
	ItemTypeProduct ItemType = "PRODUCT"
	ItemTypeService ItemType = "SERVICE"
)

func (t ItemType) IsValid() bool {
	return t == ItemTypeProduct || t == ItemTypeService
}

type WithdrawalStatusType string

const (
	WithdrawalStatusPending    WithdrawalStatusType = "PENDING"
	WithdrawalStatusApproved   WithdrawalStatusType = "APPROVED"
	WithdrawalStatusProcessing WithdrawalStatusType = "PROCESSING"
	WithdrawalStatusCompleted  WithdrawalStatusType = "COMPLETED"
	WithdrawalStatusRejected   WithdrawalStatusType = "REJECTED"
	WithdrawalStatusFailed     WithdrawalStatusType = "FAILED"
)

// ActiveWithdrawalStatuses нетерминальные статусы. У юзера одновременно может быть не больше одной заявки
// в одном из них.
var ActiveWithdrawalStatuses = []WithdrawalStatusType{
	WithdrawalStatusPending,
	WithdrawalStatusApproved,
	WithdrawalStatusProcessing,
}

func (s WithdrawalStatusType) IsValid() bool {
	switch s {
	case WithdrawalStatusPending, WithdrawalStatusApproved, WithdrawalStatusProcessing,
		WithdrawalStatusCompleted, WithdrawalStatusRejected, WithdrawalStatusFailed:
		return true
	default:
		return false
	}
}

func (s WithdrawalStatusType) IsTerminal() bool {
	switch s {
	case WithdrawalStatusCompleted, WithdrawalStatusRejected, WithdrawalStatusFailed:
		return true
	default:
		return false
	}
}

var withdrawalTransitions = map[WithdrawalStatusType][]WithdrawalStatusType{
	WithdrawalStatusPending: {
		WithdrawalStatusApproved,
		WithdrawalStatusRejected,
		WithdrawalStatusFailed,
	},
	WithdrawalStatusApproved: {
		WithdrawalStatusProcessing,
		WithdrawalStatusCompleted,
		WithdrawalStatusFailed,
	},
	WithdrawalStatusProcessing: {
		WithdrawalStatusCompleted,
		WithdrawalStatusFailed,
	},
}

func (s WithdrawalStatusType) CanTransitionTo(next WithdrawalStatusType) bool {
	for _, allowed := range withdrawalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// WithdrawalDecision решение оператора по заявке на вывод.
type WithdrawalDecision string

const (
	DecisionApprove  WithdrawalDecision = "approve"
	DecisionProcess  WithdrawalDecision = "process"
	DecisionComplete WithdrawalDecision = "complete"
	DecisionReject   WithdrawalDecision = "reject"
	DecisionFail     WithdrawalDecision = "fail"
)

// TargetStatus возвращает статус, в который решение переводит заявку. Второе значение false для
// неизвестного решения.
func (d WithdrawalDecision) TargetStatus() (WithdrawalStatusType, bool) {
	switch d {
	case DecisionApprove:
		return WithdrawalStatusApproved, true
	case DecisionProcess:
		return WithdrawalStatusProcessing, true
	case DecisionComplete:
		return WithdrawalStatusCompleted, true
	case DecisionReject:
		return WithdrawalStatusRejected, true
	case DecisionFail:
		return WithdrawalStatusFailed, true
	default:
		return "", false
	}
}

type NotificationType string

const (
	NotificationPaymentCompleted NotificationType = "payment.completed"
	NotificationPaymentStatus    NotificationType = "payment.status"
	NotificationEarningsReleased NotificationType = "earnings.released"
	NotificationWithdrawalStatus NotificationType = "withdrawal.status"
)

type UserRole string

const (
	RoleUser     UserRole = "user"
	RoleOperator UserRole = "operator"
)
