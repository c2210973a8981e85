package analyzer

import (
	"fmt"
	"strings"

	"github.com/use-agent/bughunter/models"
)

const analysisSystemPrompt = "You are an expert QA engineer who provides detailed, actionable bug analysis. Always respond with valid JSON."

const fixSystemPrompt = "You are an expert developer who provides clear, actionable fix suggestions with code examples. Always respond with valid JSON."

func analysisPrompt(bugs []models.Bug, url string) string {
	var list strings.Builder
	for i, b := range bugs {
		if i > 0 {
			list.WriteByte('\n')
		}
		fmt.Fprintf(&list, "%d. [%s] %s: %s", i+1, strings.ToUpper(string(b.Severity)), b.Type, b.Message)
	}

	return fmt.Sprintf(`You are a senior QA engineer analyzing bugs found on %s.

Bugs detected:
%s

Please provide:
1. Overall assessment of the website's quality
2. Priority order for fixing (most critical first)
3. Estimated impact on users for each bug
4. Quick recommendations for the top 3 most important fixes

Format your response as JSON with this structure:
{
  "overallAssessment": "brief assessment",
  "qualityScore": 0-100,
  "prioritizedBugs": [
    {
      "bugIndex": 1,
      "priority": "critical/high/medium/low",
      "userImpact": "description",
      "recommendation": "what to do"
    }
  ],
  "quickWins": ["easy fix 1", "easy fix 2"],
  "estimatedFixTime": "time estimate"
}`, url, list.String())
}

func fixPrompt(b models.Bug) string {
	location := ""
	if b.Location != "" {
		location = "Location: " + b.Location
	}

	return fmt.Sprintf(`You are a senior developer. A QA tool detected this bug:

Type: %s
Severity: %s
Message: %s
%s

Please provide:
1. Explanation of why this is a problem
2. Step-by-step fix instructions
3. Code example (if applicable)
4. Prevention tips for the future

Format as JSON:
{
  "explanation": "why this is a problem",
  "steps": ["step 1", "step 2"],
  "codeExample": "code here (if applicable)",
  "language": "javascript/html/css",
  "prevention": "how to prevent this",
  "estimatedTime": "time to fix"
}`, b.Type, b.Severity, b.Message, location)
}
