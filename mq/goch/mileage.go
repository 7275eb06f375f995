package goch

import (
	"mileage/mq/mq"
)

// GoChanMileageMessageQueueWrapper keeps events inside the process. It is the
// default for a single server instance.
type GoChanMileageMessageQueueWrapper struct {
	submissions *fanOutQueueCore[mq.SubmissionMessage]
	records     *fanOutQueueCore[mq.RecordMessage]
}

func NewGoChanMileageMessageQueueWrapper(bufferSize int) *GoChanMileageMessageQueueWrapper {
	return &GoChanMileageMessageQueueWrapper{
		submissions: newFanOutQueueCore[mq.SubmissionMessage](bufferSize),
		records:     newFanOutQueueCore[mq.RecordMessage](bufferSize),
	}
}

func (w *GoChanMileageMessageQueueWrapper) GetSubmissionMessageQueue() mq.MessageQueue[mq.SubmissionMessage] {
	return w.submissions
}

func (w *GoChanMileageMessageQueueWrapper) GetRecordMessageQueue() mq.MessageQueue[mq.RecordMessage] {
	return w.records
}

func (w *GoChanMileageMessageQueueWrapper) Close() error {
	w.submissions.Stop()
	w.records.Stop()
	return nil
}
