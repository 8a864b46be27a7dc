package browser

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
)

// pluginScript is the Browser Plugin: in-page DOM utilities installed
// once per page before navigation.
//
//go:embed plugin.js
var pluginScript string

// InstallPlugin evaluates pluginScript on page, exposing
// window.__analyzerPlugin. Call once per fresh page, before navigation
// completes, so it is present for every subsequent interaction.
func InstallPlugin(page *rod.Page) error {
	_, err := page.EvalOnNewDocument(pluginScript)
	if err != nil {
		return fmt.Errorf("browser: install plugin: %w", err)
	}
	// Also evaluate immediately in case the page has already loaded
	// (EvalOnNewDocument only applies to future navigations).
	_, _ = page.Eval(pluginScript)
	return nil
}

// ScrollResult is the outcome of a find_common_parent / get_last_visible_child
// plugin call.
type ScrollResult struct {
	OK       bool   `json:"ok"`
	Selector string `json:"selector"`
}

// ScrollToNextView scrolls one viewport in direction ("up" or "down").
// Returns whether a scroll actually occurred (false at the document edge).
func ScrollToNextView(page *rod.Page, direction string) (bool, error) {
	obj, err := page.Eval(`(direction) => window.__analyzerPlugin.scroll_to_next_view(direction)`, direction)
	if err != nil {
		return false, err
	}
	return obj.Value.Bool(), nil
}

// FindCommonParent resolves each section to the smallest visible element
// containing it, then ascends to their lowest common ancestor. Returns
// (selector, true) only when at least threshold fraction of the sections
// resolved to a shared ancestor.
func FindCommonParent(page *rod.Page, sections []string, threshold float64) (string, bool, error) {
	sectionsJSON, err := json.Marshal(sections)
	if err != nil {
		return "", false, err
	}
	obj, err := page.Eval(`(sectionsJSON, threshold) => window.__analyzerPlugin.find_common_parent(sectionsJSON, threshold)`, string(sectionsJSON), threshold)
	if err != nil {
		return "", false, err
	}
	var result ScrollResult
	if err := json.Unmarshal([]byte(obj.Value.String()), &result); err != nil {
		return "", false, err
	}
	return result.Selector, result.OK, nil
}

// GetLastVisibleChild returns a selector for the last direct child of
// parentSelector that is currently below the viewport, if any.
func GetLastVisibleChild(page *rod.Page, parentSelector string) (string, bool, error) {
	obj, err := page.Eval(`(sel) => window.__analyzerPlugin.get_last_visible_child(sel)`, parentSelector)
	if err != nil {
		return "", false, err
	}
	var result ScrollResult
	if err := json.Unmarshal([]byte(obj.Value.String()), &result); err != nil {
		return "", false, err
	}
	return result.Selector, result.OK, nil
}

// ScrollToElement scrolls selector into view.
func ScrollToElement(page *rod.Page, selector string) (bool, error) {
	obj, err := page.Eval(`(sel) => window.__analyzerPlugin.scroll_to_element(sel)`, selector)
	if err != nil {
		return false, err
	}
	return obj.Value.Bool(), nil
}

// OuterHTML returns the outer HTML of the first element matching
// selector, used to realize a Preprocessor without re-fetching the page.
func OuterHTML(page *rod.Page, selector string) (string, bool, error) {
	obj, err := page.Eval(`(sel) => window.__analyzerPlugin.outer_html(sel)`, selector)
	if err != nil {
		return "", false, err
	}
	var result struct {
		OK   bool   `json:"ok"`
		HTML string `json:"html"`
	}
	if err := json.Unmarshal([]byte(obj.Value.String()), &result); err != nil {
		return "", false, err
	}
	return result.HTML, result.OK, nil
}
