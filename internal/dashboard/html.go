package dashboard

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>TopicScout</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: -apple-system, system-ui, sans-serif; background: #0f172a; color: #e2e8f0; min-height: 100vh; }
        .header { background: #1e293b; padding: 1.5rem 2rem; border-bottom: 1px solid #475569; display: flex; justify-content: space-between; align-items: center; }
        .header h1 { font-size: 1.5rem; color: #38bdf8; }
        .header .uptime { font-size: 0.875rem; color: #94a3b8; }
        h2 { padding: 1.5rem 2rem 0; font-size: 0.875rem; text-transform: uppercase; letter-spacing: 0.05em; color: #64748b; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 1rem; padding: 1rem 2rem; }
        .card { background: #1e293b; border: 1px solid #334155; border-radius: 12px; padding: 1.25rem; }
        .card .label { font-size: 0.75rem; text-transform: uppercase; color: #94a3b8; margin-bottom: 0.5rem; }
        .card .value { font-size: 1.75rem; font-weight: 700; color: #f1f5f9; }
        .card.accent .value { color: #38bdf8; }
        .card.success .value { color: #4ade80; }
        .card.warning .value { color: #fbbf24; }
        .card.error .value { color: #f87171; }
    </style>
</head>
<body>
    <div class="header">
        <h1>TopicScout</h1>
        <span class="uptime" id="uptime"></span>
    </div>
    <h2>Crawling</h2>
    <div class="grid">
        <div class="card accent"><div class="label">Crawls</div><div class="value" id="crawls_total">0</div></div>
        <div class="card error"><div class="label">Crawls Failed</div><div class="value" id="crawls_failed">0</div></div>
        <div class="card"><div class="label">Attempts</div><div class="value" id="crawl_attempts">0</div></div>
        <div class="card"><div class="label">Light Fetches</div><div class="value" id="fetches_light">0</div></div>
        <div class="card"><div class="label">Rendered Fetches</div><div class="value" id="fetches_rendered">0</div></div>
        <div class="card warning"><div class="label">Blocked</div><div class="value" id="blocked">0</div></div>
        <div class="card warning"><div class="label">Rate Limited</div><div class="value" id="rate_limited">0</div></div>
        <div class="card"><div class="label">Redirects Resolved</div><div class="value" id="redirects_resolved">0</div></div>
    </div>
    <h2>Searching</h2>
    <div class="grid">
        <div class="card accent"><div class="label">Engine Queries</div><div class="value" id="searches_total">0</div></div>
        <div class="card success"><div class="label">Engine Results</div><div class="value" id="search_results">0</div></div>
        <div class="card error"><div class="label">Engine Failures</div><div class="value" id="engine_failures">0</div></div>
        <div class="card accent"><div class="label">Platform Queries</div><div class="value" id="platform_queries">0</div></div>
        <div class="card error"><div class="label">Platform Failures</div><div class="value" id="platform_failures">0</div></div>
        <div class="card warning"><div class="label">Mock Fallbacks</div><div class="value" id="mock_fallbacks">0</div></div>
        <div class="card success"><div class="label">Results Stored</div><div class="value" id="results_stored">0</div></div>
    </div>
    <script>
        async function refresh() {
            try {
                const r = await fetch('/api/stats');
                const d = await r.json();
                document.getElementById('uptime').textContent = 'up ' + (d.uptime || '0s');
                document.querySelectorAll('.value[id]').forEach(el => {
                    if (d[el.id] !== undefined) el.textContent = Number(d[el.id]).toLocaleString();
                });
            } catch (e) {}
        }
        setInterval(refresh, 2000);
        refresh();
    </script>
</body>
</html>`
