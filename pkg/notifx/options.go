package notifx

// SendOptions carries per-message provider settings
type SendOptions struct {
	Tags     map[string]string
	ConfigID string
}

// Option adjusts SendOptions for one send
type Option func(*SendOptions)

// WithTags merges tags into the message tags. Later options win per key.
func WithTags(tags map[string]string) Option {
	return func(o *SendOptions) {
		for k, v := range tags {
			o.setTag(k, v)
		}
	}
}

// WithTag sets a single message tag
func WithTag(key, value string) Option {
	return func(o *SendOptions) {
		o.setTag(key, value)
	}
}

// WithConfigID selects a provider configuration set (SES) or is ignored.
func WithConfigID(id string) Option {
	return func(o *SendOptions) {
		o.ConfigID = id
	}
}

func (o *SendOptions) setTag(k, v string) {
	if o.Tags == nil {
		o.Tags = make(map[string]string)
	}
	o.Tags[k] = v
}

// ApplySendOptions folds opts for providers
func ApplySendOptions(opts []Option) SendOptions {
	var so SendOptions
	for _, o := range opts {
		o(&so)
	}
	return so
}
