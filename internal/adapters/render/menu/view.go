package menu

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/digitalworks2020/devops-cli/internal/domain"
	"github.com/digitalworks2020/devops-cli/internal/ports"
)

const velocityBarWidth = 24

// Renderer draws the interactive menus and query reports.
type Renderer struct {
	s styles
}

var _ ports.MenuRenderer = Renderer{}

func NewRenderer() Renderer {
	return Renderer{s: newStyles()}
}

func (r Renderer) Banner(text string) string {
	return r.s.banner.Render(text)
}

func (r Renderer) ToolMenu(tools []domain.ToolSchema) string {
	lines := []string{r.s.title.Render("Available tools:")}
	for _, tool := range tools {
		lines = append(lines, fmt.Sprintf("  %s %s", r.s.key.Render(string(tool.ID)), r.s.header.Render("("+tool.Title()+")")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (r Renderer) AccountList(tool domain.ToolSchema, names []string) string {
	if len(names) == 0 {
		return r.s.empty.Render("No accounts found.")
	}

	lines := []string{r.s.title.Render(fmt.Sprintf("Existing %s accounts:", tool.Title()))}
	for _, name := range names {
		lines = append(lines, r.s.item.Render("  - "+name))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// AccountDetails expects creds to be masked already; keys fixes the order.
func (r Renderer) AccountDetails(tool domain.ToolSchema, account string, creds domain.Credentials, keys []string) string {
	lines := []string{
		r.s.title.Render("Selected tool: ") + r.s.key.Render(tool.Title()),
		r.s.title.Render("Selected account: ") + r.s.key.Render(account),
	}
	for _, key := range keys {
		value := creds[key]
		if value == domain.HiddenValue {
			value = r.s.hidden.Render(value)
		} else {
			value = r.s.detail.Render(value)
		}
		lines = append(lines, fmt.Sprintf("  %s: %s", r.s.header.Render(key), value))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// ToolCatalog describes every tool with its fields and operations.
func (r Renderer) ToolCatalog(tools []domain.ToolSchema) string {
	blocks := []string{r.s.title.Render("Supported tools")}
	for _, tool := range tools {
		lines := []string{r.s.key.Render(string(tool.ID)) + " " + r.s.header.Render("("+tool.Title()+")")}
		for _, field := range tool.Fields {
			label := field.Name
			if field.Secure {
				label += " " + r.s.warning.Render("[secure]")
			}
			lines = append(lines, "  field: "+label)
		}
		for _, op := range tool.Operations {
			lines = append(lines, r.s.detail.Render(fmt.Sprintf("  operation: %s - %s", op.Key, op.Label)))
		}
		blocks = append(blocks, r.s.section.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func (r Renderer) OperationMenu(tool domain.ToolSchema) string {
	lines := []string{r.s.title.Render(fmt.Sprintf("Supported %s operations:", tool.Title()))}
	for i, op := range tool.Operations {
		lines = append(lines, fmt.Sprintf("  %s %s", r.s.key.Render(fmt.Sprintf("%d.", i+1)), r.s.item.Render(op.Label)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (r Renderer) SprintStats(stats []domain.SprintStat) string {
	if len(stats) == 0 {
		return r.s.empty.Render("No sprint stats available.")
	}

	lines := []string{r.s.title.Render(fmt.Sprintf("Story points for the last %d closed sprints:", len(stats)))}
	for _, stat := range stats {
		lines = append(lines,
			r.s.key.Render("Sprint: "+stat.Sprint),
			r.s.detail.Render(fmt.Sprintf("  Committed SP: %.2f", stat.CommittedSP)),
			lipgloss.JoinHorizontal(lipgloss.Top,
				r.s.detail.Render(fmt.Sprintf("  Achieved SP: %.2f ", stat.AchievedSP)),
				r.velocityBar(completion(stat), velocityBarWidth),
			),
		)
	}
	lines = append(lines, r.s.amount.Render(fmt.Sprintf("Avg Achieved SP (last %d): %.2f", len(stats), domain.AverageAchieved(stats))))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (r Renderer) IssuesByStatus(issues []domain.Issue) string {
	if len(issues) == 0 {
		return r.s.empty.Render("No issues assigned to you in the current sprint.")
	}

	order, groups := domain.GroupIssuesByStatus(issues)
	blocks := []string{r.s.title.Render("Your issues in current sprint (grouped by status):")}
	for _, status := range order {
		lines := []string{r.s.key.Render("Status: " + status)}
		for _, issue := range groups[status] {
			lines = append(lines, r.s.item.Render(fmt.Sprintf("- %s: %s", issue.Key, issue.Summary)))
		}
		blocks = append(blocks, r.s.section.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func (r Renderer) Cost(label string, cost domain.MonthCost) string {
	amount := fmt.Sprintf("%.2f %s", cost.Amount, cost.Unit)
	if cost.Unit == "" || cost.Unit == "USD" {
		amount = fmt.Sprintf("$%.2f", cost.Amount)
	}
	return fmt.Sprintf("%s (%s) AWS cost: %s", r.s.title.Render(label), cost.Period(), r.s.amount.Render(amount))
}

func (r Renderer) Instances(state string, instances []domain.Instance) string {
	if len(instances) == 0 {
		return r.s.empty.Render(fmt.Sprintf("No instances in state '%s'.", state))
	}

	lines := []string{
		r.s.title.Render(fmt.Sprintf("Instances in state '%s': %d", state, len(instances))),
	}
	for _, inst := range instances {
		name := inst.Name
		if name == "" {
			name = "-"
		}
		line := fmt.Sprintf("  %s  %s  %s  %s", r.s.key.Render(inst.ID), name, inst.Type, orDash(inst.PrivateIP))
		if !inst.LaunchedAt.IsZero() {
			line += r.s.header.Render("  launched " + inst.LaunchedAt.UTC().Format("2006-01-02 15:04"))
		}
		lines = append(lines, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (r Renderer) Failure(err error) string {
	return r.s.warning.Render("Operation failed: ") + err.Error()
}

func (r Renderer) velocityBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(percent) / 100))
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		r.s.barBracket.Render("["),
		r.s.barFill.Render(strings.Repeat("=", filled)),
		r.s.barEmpty.Render(strings.Repeat("-", width-filled)),
		r.s.barBracket.Render("]"),
		r.s.header.Render(fmt.Sprintf(" %3.0f%%", clampPercent(percent))),
	)
}

func completion(stat domain.SprintStat) float64 {
	if stat.CommittedSP <= 0 {
		return 0
	}
	return stat.AchievedSP / stat.CommittedSP * 100
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
