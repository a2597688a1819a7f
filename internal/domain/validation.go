package domain

// Status: итоговое состояние KSI после классификации.
// В исходных артефактах не хранится, всегда вычисляется из assertion + reason.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusWarning Status = "warning"
	StatusInfo    Status = "info"
	StatusUnknown Status = "unknown"
)

// CommandSource фиксирует, каким уровнем резолвера получен список команд (для аудита).
type CommandSource string

const (
	SourceExecutionLog          CommandSource = "execution_log"
	SourceComprehensiveRegister CommandSource = "comprehensive_register"
	SourceValidationSummary     CommandSource = "validation_summary"
	SourceFallbackSingle        CommandSource = "fallback_single"
	SourceFallbackParsed        CommandSource = "fallback_parsed"
)

const (
	CommandSuccess = "success"
	CommandFailed  = "failed"
)

// CommandExecution: одна команда сбора доказательств.
// Команда никогда не исполняется локально, это только описание того, что запускал движок валидации.
type CommandExecution struct {
	Command       string        `json:"command"`
	Description   string        `json:"description,omitempty"`
	Status        string        `json:"status"` // success | failed
	ExitCode      int           `json:"exit_code"`
	ExecutionTime float64       `json:"execution_time"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	Source        CommandSource `json:"source"`
}

// ValidationRecord: нормализованный результат по одному KSI.
type ValidationRecord struct {
	ID          string   `json:"id"`
	Assertion   *bool    `json:"assertion"` // true / false / null
	Status      Status   `json:"status"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Reason      string   `json:"reason"`
	Score       *float64 `json:"score,omitempty"`
	Timestamp   string   `json:"timestamp,omitempty"`

	Commands           []CommandExecution `json:"commands"`
	CommandSource      CommandSource      `json:"command_source,omitempty"`
	CommandsExecuted   int                `json:"commands_executed"`
	SuccessfulCommands int                `json:"successful_commands"`

	// true для уровней регистра и разобранной сводки: успех команд оценен, а не наблюдался
	CommandsEstimated bool `json:"commands_estimated"`

	// Справка из регистра: зачем эта команда нужна
	Justification string `json:"justification,omitempty"`
}
