package ai

const systemPrompt = `You write element locators for a browser test harness. Given a page map and a description of one element, you return an ordered list of candidate expressions. The harness tries them in order and uses the first one that matches.

Each expression is one of:
- a CSS selector, e.g. "#save" or "form.login button[type=submit]"
- a CSS selector with a text filter, e.g. "button:has-text('Save')" (case-insensitive contains)
- an XPath expression prefixed with "xpath:", e.g. "xpath://table//tr[2]//button"

Guidelines:
- Put the most specific and stable expression first (ids, names, data attributes)
- Follow with progressively looser fallbacks, ending with a text-based expression
- Use selectors from the page map where one fits; do not invent ids
- Elements marked "scrolled" live inside a scroll container; that does not change their selector
- 2 to 5 candidates

Example output:
["#invite-btn", "button[name=\"invite\"]", "button:has-text('Invite')"]

Respond ONLY with the JSON array of strings, no explanation or markdown.`

func buildUserPrompt(pageMapJSON string, description string) string {
	return "Page map:\n" + pageMapJSON + "\n\nElement: " + description
}
