package extract

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// FAQItem is one question/answer pair from the help page.
type FAQItem struct {
	Question string
	Answer   string
}

// FAQPage extracts question/answer pairs. Each FAQ entry is an li with an
// id prefixed "faq_" holding a button (the question) and a sibling div (the
// answer).
func FAQPage(html string) ([]FAQItem, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	var items []FAQItem
	candidates := doc.Find(`li[id^="faq_"]`)
	candidates.Each(func(_ int, li *goquery.Selection) {
		btn := li.Find("button").First()
		if btn.Length() == 0 {
			return
		}
		question := cleanText(btn.Text())

		// The answer is usually the button's next sibling div; fall
		// back to the first div inside the item when the DOM differs.
		answerDiv := btn.NextFiltered("div")
		if answerDiv.Length() == 0 {
			answerDiv = li.Find("div").First()
		}
		answer := cleanText(answerDiv.Text())

		if question == "" && answer == "" {
			return
		}
		items = append(items, FAQItem{Question: question, Answer: answer})
	})

	if len(items) == 0 {
		return nil, fmt.Errorf("no FAQ entries found among %d candidate items", candidates.Length())
	}
	return items, nil
}
