/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package all

import (
	_ "github.com/traas-stack/holoinsight-ingest/pkg/plugin/output/console"
	_ "github.com/traas-stack/holoinsight-ingest/pkg/plugin/output/nats"
)
