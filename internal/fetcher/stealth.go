package fetcher

// antiDetectionJS runs before any page script and hides the most common
// headless-automation tells.
const antiDetectionJS = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });

window.chrome = window.chrome || { runtime: {} };

const originalQuery = window.navigator.permissions && window.navigator.permissions.query;
if (originalQuery) {
	window.navigator.permissions.query = (parameters) => (
		parameters.name === 'notifications' ?
			Promise.resolve({ state: Notification.permission }) :
			originalQuery(parameters)
	);
}

Object.defineProperty(navigator, 'languages', { get: () => ['zh-CN', 'zh', 'en'] });

Object.defineProperty(navigator, 'plugins', {
	get: () => [
		{ name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer' },
		{ name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai' },
		{ name: 'Native Client', filename: 'internal-nacl-plugin' },
	],
});
`
