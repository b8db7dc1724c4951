package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/noah-isme/college-eapproval-api/internal/models"
)

// Heading printed at the top of every signed document.
const Heading = "College E-Approval - Signed Request"

// bodyLineWidth is the reflow width for the description body, sized for a
// 12pt Helvetica line across an A4 page with 50pt margins.
const bodyLineWidth = 88

// SignatureSlot describes one of the three signature positions. A missing
// image is a degraded render, never a failure: the slot keeps its bold role
// label and gains an explicit missing marker.
type SignatureSlot struct {
	Stage     models.Stage
	Label     string
	ImagePath string
	Missing   bool
}

// Layout is the full content of a signed document, computed as pure data
// before any rendering backend is involved. Given the same request state
// and signature resolution, the layout is always identical.
type Layout struct {
	Heading     string
	Title       string
	SubmittedBy string
	FinalStatus string
	BodyLines   []string
	Signatures  []SignatureSlot
}

// SignatureResolver locates the signature image for a stage. A negative
// answer marks the slot as missing.
type SignatureResolver interface {
	Resolve(stage models.Stage) (string, bool)
}

// SignatureResolverFunc adapts plain functions.
type SignatureResolverFunc func(stage models.Stage) (string, bool)

// Resolve implements SignatureResolver.
func (f SignatureResolverFunc) Resolve(stage models.Stage) (string, bool) {
	return f(stage)
}

// DirSignatureResolver looks up `<dir>/<stage>.png` on disk.
type DirSignatureResolver struct {
	dir string
}

// NewDirSignatureResolver constructs a resolver rooted at dir.
func NewDirSignatureResolver(dir string) *DirSignatureResolver {
	return &DirSignatureResolver{dir: dir}
}

// Resolve implements SignatureResolver.
func (r *DirSignatureResolver) Resolve(stage models.Stage) (string, bool) {
	path := filepath.Join(r.dir, fmt.Sprintf("%s.png", stage))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

var signatureOrder = []struct {
	stage models.Stage
	label string
}{
	{models.StageClassTeacher, "CLASS TEACHER"},
	{models.StageHOD, "HOD"},
	{models.StagePrincipal, "PRINCIPAL"},
}

// BuildLayout computes the document content for a fully approved request.
func BuildLayout(req *models.ApprovalRequest, signatures SignatureResolver) Layout {
	layout := Layout{
		Heading:     Heading,
		Title:       fmt.Sprintf("Title: %s", req.Title),
		SubmittedBy: fmt.Sprintf("Submitted by: %s (ID: %s)", req.CreatorName, req.CreatedBy),
		FinalStatus: fmt.Sprintf("Final Status: %s", req.OverallStatus),
		BodyLines:   ReflowBody(req.Description, bodyLineWidth),
	}

	for _, entry := range signatureOrder {
		slot := SignatureSlot{Stage: entry.stage, Label: entry.label, Missing: true}
		if signatures != nil {
			if path, ok := signatures.Resolve(entry.stage); ok {
				slot.ImagePath = path
				slot.Missing = false
			}
		}
		layout.Signatures = append(layout.Signatures, slot)
	}

	return layout
}

// ReflowBody splits the description into render lines: explicit newlines are
// preserved and long lines wrap at word boundaries within width runes.
func ReflowBody(body string, width int) []string {
	if width <= 0 {
		width = bodyLineWidth
	}

	lines := make([]string, 0, 8)
	for _, raw := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		if len([]rune(raw)) <= width {
			lines = append(lines, raw)
			continue
		}
		lines = append(lines, wrapLine(raw, width)...)
	}
	return lines
}

func wrapLine(line string, width int) []string {
	words := strings.Fields(line)
	if len(words) == 0 {
		return []string{""}
	}

	wrapped := make([]string, 0, 2)
	current := words[0]
	for _, word := range words[1:] {
		if len([]rune(current))+1+len([]rune(word)) <= width {
			current += " " + word
			continue
		}
		wrapped = append(wrapped, current)
		current = word
	}
	wrapped = append(wrapped, current)
	return wrapped
}
