package config

const (
	// TopicProcessDocument carries paginated documents stored in object storage.
	TopicProcessDocument = "ocr.document"

	// TopicProcessImages carries directories of already rasterized page images.
	TopicProcessImages = "ocr.images"

	// TopicDigitalS3 carries digital articles referenced by an s3:// URL.
	TopicDigitalS3 = "ocr.digital.s3"

	// TopicDigitalRaw carries digital articles inline in the message body.
	TopicDigitalRaw = "ocr.digital.raw"

	// TopicNotify carries completed payloads destined for the downstream receiver.
	TopicNotify = "ocr.notify"

	// Channel is the consumer channel shared by all engine workers.
	Channel = "engine"
)

// Topics lists every topic the engine publishes or consumes.
var Topics = []string{
	TopicProcessDocument,
	TopicProcessImages,
	TopicDigitalS3,
	TopicDigitalRaw,
	TopicNotify,
}
