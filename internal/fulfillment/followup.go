package fulfillment

import "strings"

const defaultLanguageCode = "es"

// applyFollowups adds the scripted follow-up fields to resp for a
// successful reply. Event rules take precedence; when one fires no context
// rule is applied. It reports which rule fired, for logging.
func applyFollowups(rules FollowupConfig, in Input, reply string, resp *WebhookResponse) string {
	for _, rule := range rules.Events {
		if !hasContext(in.ActiveContexts, rule.Context) {
			continue
		}
		lang := rule.LanguageCode
		if lang == "" {
			lang = in.LanguageCode
		}
		if lang == "" {
			lang = defaultLanguageCode
		}
		resp.FollowupEventInput = &EventInput{
			Name:         rule.Event,
			LanguageCode: lang,
			Parameters:   map[string]any{"reply": reply},
		}
		return "event:" + rule.Event
	}

	for _, rule := range rules.Contexts {
		if rule.Intent != in.Intent {
			continue
		}
		if in.Session == "" {
			return "skipped:no-session"
		}
		resp.OutputContexts = append(resp.OutputContexts, Context{
			Name:          contextName(in.Session, rule.Context),
			LifespanCount: rule.Lifespan,
		})
		if rule.Question != "" {
			resp.FulfillmentText = reply + "\n\n" + rule.Question
		}
		return "context:" + rule.Context
	}
	return ""
}

func contextName(session, ctx string) string {
	return strings.TrimRight(session, "/") + "/contexts/" + ctx
}

// hasContext reports whether any active context name ends in
// "/contexts/<name>". Dialogflow lowercases context ids, so the match
// ignores case.
func hasContext(active []string, name string) bool {
	suffix := "/contexts/" + strings.ToLower(name)
	for _, a := range active {
		if strings.HasSuffix(strings.ToLower(a), suffix) {
			return true
		}
	}
	return false
}
