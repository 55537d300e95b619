package receipt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TextGenerator is the fallback Generator: it writes the plain-text
// rendering to a file so the email flow works without the PDF
// collaborator attached.
type TextGenerator struct {
	Dir string // defaults to the system temp directory
}

// Generate writes the receipt and returns its path.
func (g *TextGenerator) Generate(lines []Line, total string) (string, error) {
	dir := g.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("receipt-%d.txt", time.Now().UnixNano()))
	if err := os.WriteFile(path, []byte(TextReceipt(lines, total)), 0o644); err != nil {
		return "", fmt.Errorf("write receipt: %w", err)
	}
	return path, nil
}

// TextReceipt renders a plain-text receipt body, used by the fallback
// generator when no PDF collaborator is wired.
func TextReceipt(lines []Line, total string) string {
	var b strings.Builder
	b.WriteString("CyberKart Receipt\n")
	b.WriteString(time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString("\n\n")
	for _, line := range lines {
		fmt.Fprintf(&b, "%-20s x%-3d $%s\n", line.Name, line.Quantity, line.Price)
	}
	fmt.Fprintf(&b, "\nTotal: $%s\n", total)
	return b.String()
}
