package planner

import "strings"

// promptTemplate embeds the goal and frontier state into the planner
// request. The planner may only reference registered tool names.
const promptTemplate = `SYSTEM:
You are an autonomous planner that outputs a JSON plan for crawling and extracting procurement tenders (RFPs) related to coatings, waterproofing, and industrial painting.
Use ONLY the allowed tools: frontier.add, frontier.pop, fetcher.fetch_html, extractor.extract_all, downloader.download_binary, db.insert_rfp, log, noop.

Produce ONLY a JSON object with keys: plan_id (string), goal (string), actions (array), max_steps (integer).

Each action must be an object:
{
  "id": "<unique id>",
  "tool": "<tool name>",
  "args": { ... },
  "retry_policy": {"retries": <int>, "backoff_seconds": <int>}
}

USER:
GOAL:
{goal}

STATE:
{state}

REQUIREMENTS:
- Keep actions small (one tool call each).
- The STATE includes urls_to_process - an array of URL objects with 'url' field.
- For EACH URL in urls_to_process, generate EXACTLY these actions in sequence:
  - fetcher.fetch_html with {"url": "THE_ACTUAL_URL_FROM_STATE"}
  - extractor.extract_all with {"url": "THE_ACTUAL_URL_FROM_STATE", "text": "{<fetch_action_id>.result.html}"}
  - db.insert_rfp with {"record": "{<extract_action_id>.result}"}
- Replace THE_ACTUAL_URL_FROM_STATE with the actual URL string from urls_to_process.
- Do NOT invent URLs - use only URLs from urls_to_process.
- Add sensible retry_policy for network IO (retries >= 1).
- Do not include any commentary or extraneous fields.

Return only the JSON object.`

// buildPrompt fills the template placeholders.
func buildPrompt(goal, stateSummary string) string {
	out := strings.ReplaceAll(promptTemplate, "{goal}", goal)
	return strings.ReplaceAll(out, "{state}", stateSummary)
}

// buildRepairPrompt asks the model to convert its previous raw output into
// a single schema-valid JSON object.
func buildRepairPrompt(raw string, schemaText string) string {
	const maxRawBytes = 60000
	if len(raw) > maxRawBytes {
		raw = raw[:maxRawBytes]
	}
	var b strings.Builder
	b.WriteString("You returned text that is not valid JSON. Convert the following text into a single, valid JSON object that strictly matches the plan schema below. RETURN ONLY THE JSON OBJECT.\n\n")
	b.WriteString("PLAN_SCHEMA: ")
	b.WriteString(schemaText)
	b.WriteString("\n\nRAW_OUTPUT:\n")
	b.WriteString(raw)
	b.WriteString("\n\nReturn only the corrected JSON object.")
	return b.String()
}
