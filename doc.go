/*
Package arbor is a conditional questionnaire engine.

A questionnaire is made of groups. Each group owns a bank of questions and a
logic tree that decides which of them a respondent sees: conditionals gate
nested questions on earlier answers, repeatable questions expand into
instances, and the visible list is paginated.

# Concept

Arbor separates three concerns:

  - Authoring: an Editor mutates the logic tree of one group and persists
    questions and structure to a ports.QuestionStore in the background.
  - Evaluation: flow.Evaluate is a pure function from tree, questions and
    answers to the visible page.
  - Answering: a session.Session walks a respondent through one or more
    groups, saving answers to a ports.SessionStore.

Storage and transport are adapters (memory, file, Redis, Loam, HTTP, MCP), so
the engine can be embedded in a CLI, a server or an agent toolchain.

# Usage

	eng, err := arbor.Open("./groups")
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	sess, err := eng.OpenSession(ctx, "respondent-1", "intake", "household")
	if err != nil {
		log.Fatal(err)
	}

	for _, item := range sess.View().Page.Items {
		fmt.Println(item.Question.Text)
	}

	if _, err := sess.SetAnswer(ctx, "has_pet", "yes"); err != nil {
		log.Fatal(err)
	}
	view, err := sess.Forward(ctx)
*/
package arbor
