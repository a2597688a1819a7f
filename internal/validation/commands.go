package validation

/*
Файл commands.go восстанавливает список команд сбора доказательств для KSI.

Три уровня данных, первый применимый побеждает (без смешивания уровней):
 1. Execution log: фактические результаты команд из самой записи.
 2. Register: номинальный список команд из cli_command_register.json.
    Успех команд ОЦЕНИВАЕТСЯ позиционно по score, это не наблюдаемый факт.
 3. Summary string: строка "N commands (M successful): cmd1; cmd2".
*/

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/xela07ax/trust-center/internal/domain"
)

var summaryPattern = regexp.MustCompile(`(?is)^\s*(\d+)\s+commands?\s*\(\s*(\d+)\s+successful\s*\)\s*:\s*(.*)$`)

// RegisterCommand: одна команда из регистра.
type RegisterCommand struct {
	Command     string `json:"command"`
	Note        string `json:"note,omitempty"`
	Description string `json:"description,omitempty"`
}

// RegisterEntry: запись регистра для одного KSI.
type RegisterEntry struct {
	Commands      []RegisterCommand `json:"cli_commands"`
	Description   string            `json:"description,omitempty"`
	Justification string            `json:"justification,omitempty"`
}

// Register: карта control-id -> команды. Ключи могут быть как KSI-IAM-01, так и KSI_IAM_01.
type Register map[string]RegisterEntry

// Lookup ищет запись по ID, затем по варианту с заменой дефисов на подчеркивания и обратно.
func (r Register) Lookup(id string) (RegisterEntry, bool) {
	if len(r) == 0 || id == "" {
		return RegisterEntry{}, false
	}
	for _, key := range []string{
		id,
		strings.ReplaceAll(id, "-", "_"),
		strings.ReplaceAll(id, "_", "-"),
	} {
		if e, ok := r[key]; ok {
			return e, true
		}
	}
	return RegisterEntry{}, false
}

// CommandInput: данные записи, нужные резолверу, уже приведенные к канонической форме.
type CommandInput struct {
	Assertion          *bool
	Score              *float64
	Executions         []domain.CommandExecution
	ReportedSuccessful int
	Summary            string
}

// Resolution: результат резолвинга команд.
type Resolution struct {
	Commands        []domain.CommandExecution
	Source          domain.CommandSource
	SuccessfulCount int

	// Estimated: успех команд вычислен эвристикой (уровни 2 и 3), а не взят из лога
	Estimated bool
}

// CommandInputFromRaw разбирает из сырой записи лог исполнения, счетчик успехов и строку-сводку.
func CommandInputFromRaw(raw map[string]any, assertion *bool, score *float64) CommandInput {
	in := CommandInput{
		Assertion: assertion,
		Score:     score,
		Summary:   strings.TrimSpace(lookupString(raw, summaryKeys)),
	}
	if n, ok := lookupInt(raw, successfulKeys); ok {
		in.ReportedSuccessful = n
	}
	if v, ok := lookup(raw, executionKeys); ok {
		if list, ok := v.([]any); ok {
			in.Executions = parseExecutions(list)
		}
	}
	return in
}

func parseExecutions(list []any) []domain.CommandExecution {
	out := make([]domain.CommandExecution, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		cmd := strings.TrimSpace(lookupString(m, []string{"command", "cmd"}))
		if cmd == "" {
			continue
		}
		exec := domain.CommandExecution{
			Command:      cmd,
			Description:  StripText(lookupString(m, []string{"description", "note"})),
			ErrorMessage: lookupString(m, []string{"error_message", "error", "stderr"}),
			Source:       domain.SourceExecutionLog,
		}
		exitCode, hasExit := lookupInt(m, []string{"exit_code", "return_code", "returncode"})
		exec.ExitCode = exitCode
		if t, ok := lookupFloat(m, []string{"execution_time", "duration", "elapsed"}); ok {
			exec.ExecutionTime = t
		}
		exec.Status = executionStatus(m, exitCode, hasExit)
		if src := domain.CommandSource(lookupString(m, sourceKeys)); src == domain.SourceValidationSummary {
			exec.Source = src
		}
		out = append(out, exec)
	}
	return out
}

func executionStatus(m map[string]any, exitCode int, hasExit bool) string {
	if v, ok := lookup(m, []string{"status"}); ok {
		switch strings.ToLower(strings.TrimSpace(asString(v))) {
		case "success", "succeeded", "successful", "passed", "pass", "ok", "true", "0":
			return domain.CommandSuccess
		case "":
		default:
			return domain.CommandFailed
		}
	}
	if v, ok := lookup(m, []string{"success"}); ok {
		if b := ParseAssertion(v); b != nil {
			if *b {
				return domain.CommandSuccess
			}
			return domain.CommandFailed
		}
	}
	if hasExit && exitCode == 0 {
		return domain.CommandSuccess
	}
	return domain.CommandFailed
}

// ResolveCommands выбирает уровень данных и восстанавливает список команд.
// Инвариант результата: 0 <= SuccessfulCount <= len(Commands).
func ResolveCommands(in CommandInput, entry *RegisterEntry) Resolution {
	// 1. Execution log: берем как есть
	if len(in.Executions) > 0 {
		cmds := make([]domain.CommandExecution, len(in.Executions))
		copy(cmds, in.Executions)
		return Resolution{
			Commands:        cmds,
			Source:          domain.SourceExecutionLog,
			SuccessfulCount: clamp(in.ReportedSuccessful, 0, len(cmds)),
		}
	}

	// 2. Register: позиционная оценка
	if entry != nil {
		if res, ok := resolveFromRegister(in, entry); ok {
			return res
		}
	}

	// 3. Строка-сводка
	if in.Summary != "" {
		return resolveFromSummary(in)
	}

	return Resolution{Commands: []domain.CommandExecution{}}
}

func resolveFromRegister(in CommandInput, entry *RegisterEntry) (Resolution, bool) {
	regCmds := make([]RegisterCommand, 0, len(entry.Commands))
	for _, c := range entry.Commands {
		if strings.TrimSpace(c.Command) != "" {
			regCmds = append(regCmds, c)
		}
	}
	n := len(regCmds)
	if n == 0 {
		return Resolution{}, false
	}

	successful := n
	if !isTrue(in.Assertion) {
		successful = EstimateSuccessful(in.Score, n)
	}

	cmds := make([]domain.CommandExecution, n)
	for i, c := range regCmds {
		desc := c.Description
		if desc == "" {
			desc = c.Note
		}
		cmds[i] = commandAt(strings.TrimSpace(c.Command), StripText(desc), i < successful, domain.SourceComprehensiveRegister)
	}
	return Resolution{
		Commands:        cmds,
		Source:          domain.SourceComprehensiveRegister,
		SuccessfulCount: successful,
		Estimated:       true,
	}, true
}

func resolveFromSummary(in CommandInput) Resolution {
	if m := summaryPattern.FindStringSubmatch(in.Summary); m != nil {
		parts := make([]string, 0)
		for _, p := range strings.Split(m[3], ";") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			reported, _ := strconv.Atoi(m[2])
			successful := clamp(reported, 0, len(parts))
			cmds := make([]domain.CommandExecution, len(parts))
			for i, p := range parts {
				cmds[i] = commandAt(p, "", i < successful, domain.SourceFallbackParsed)
			}
			return Resolution{
				Commands:        cmds,
				Source:          domain.SourceFallbackParsed,
				SuccessfulCount: successful,
				Estimated:       true,
			}
		}
	}

	// Строка не по шаблону: одна непрозрачная команда, статус по assertion записи
	ok := isTrue(in.Assertion)
	successful := 0
	if ok {
		successful = 1
	}
	return Resolution{
		Commands:        []domain.CommandExecution{commandAt(in.Summary, "", ok, domain.SourceFallbackSingle)},
		Source:          domain.SourceFallbackSingle,
		SuccessfulCount: successful,
	}
}

// EstimateSuccessful: детерминированная оценка числа успешных команд: round(score/100*n),
// округление half-up, результат в [0, n]. Отсутствующий score считается нулем.
func EstimateSuccessful(score *float64, n int) int {
	if score == nil || n <= 0 {
		return 0
	}
	est := math.Floor(*score*float64(n)/100 + 0.5)
	if math.IsNaN(est) || est < 0 {
		return 0
	}
	if est > float64(n) {
		return n
	}
	return clamp(int(est), 0, n)
}

func commandAt(cmd, desc string, success bool, src domain.CommandSource) domain.CommandExecution {
	c := domain.CommandExecution{
		Command:     cmd,
		Description: desc,
		Status:      domain.CommandSuccess,
		Source:      src,
	}
	if !success {
		c.Status = domain.CommandFailed
		c.ExitCode = 1
	}
	return c
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
