package chunking

import (
	"regexp"

	"CTIScraper/internal/domain"
)

var (
	commandExpr = regexp.MustCompile(`(?i)(\$\s*[\w\-./]+|>\s*[\w\-./]+|\b(cmd|powershell|bash|sh)\s+[\-/]|\\\\[\w\-.]+\\|[A-Z]:\\[\w\-./\\]+)`)
	iocExpr     = regexp.MustCompile(`(\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b|\b[a-fA-F0-9]{32}\b|\b[a-fA-F0-9]{40}\b|\b[a-fA-F0-9]{64}\b|hxxp[s]?://|\b[\w\-]+\[?\.\]?(?:com|net|org|io|ru|cn)\b)`)
)

func tag(c *domain.Chunk) {
	c.HasCode = codeBlockExpr.MatchString(c.Text)
	c.HasCommand = commandExpr.MatchString(c.Text)
	c.HasIOC = iocExpr.MatchString(c.Text)
}
