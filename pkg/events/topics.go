package events

import "fmt"

type TopicBuilder struct {
	runID string
}

func NewTopicBuilder(runID string) *TopicBuilder {
	return &TopicBuilder{runID: runID}
}

func (tb *TopicBuilder) BaseTopic() string {
	return fmt.Sprintf("fedsim/runs/%s", tb.runID)
}

func (tb *TopicBuilder) RoundStartedTopic() string {
	return tb.BaseTopic() + "/rounds/started"
}

func (tb *TopicBuilder) RoundCompletedTopic() string {
	return tb.BaseTopic() + "/rounds/completed"
}

func (tb *TopicBuilder) RoundFailedTopic() string {
	return tb.BaseTopic() + "/rounds/failed"
}

func (tb *TopicBuilder) RunCompletedTopic() string {
	return tb.BaseTopic() + "/completed"
}
